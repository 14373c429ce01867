package capability

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RuntimeError reports a runtime config that could not be used.
type RuntimeError struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

// RuntimeError types
const (
	RuntimeErrorTypeInvalidJSON     = "InvalidJson"
	RuntimeErrorTypeSchemaViolation = "SchemaViolation"
	RuntimeErrorTypeInvalidVersion  = "InvalidVersion"
)

func (e *RuntimeError) Error() string {
	switch e.Type {
	case RuntimeErrorTypeSchemaViolation:
		return fmt.Sprintf("runtime config does not match schema: %s", e.Details)
	case RuntimeErrorTypeInvalidJSON:
		return fmt.Sprintf("runtime config is not valid JSON: %s", e.Details)
	case RuntimeErrorTypeInvalidVersion:
		return fmt.Sprintf("invalid version: %s", e.Details)
	default:
		return fmt.Sprintf("runtime config error (%s): %s", e.Type, e.Details)
	}
}

// runtimeSchema is the shape every host-supplied runtime config must have.
const runtimeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["apiVersion", "supports"],
	"properties": {
		"apiVersion": {"type": "integer", "minimum": 1},
		"hostVersionsInfo": {},
		"isNAAChannelRecommended": {"type": "boolean"},
		"isLegacyTeams": {"type": "boolean"},
		"supports": {"type": "object"}
	}
}`

var compiledRuntimeSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(runtimeSchema))
	if err != nil {
		panic(fmt.Sprintf("compile runtime schema: %v", err))
	}
	compiledRuntimeSchema = schema
}

// ValidateRuntimeJSON checks data against the runtime config schema.
func ValidateRuntimeJSON(data []byte) error {
	result, err := compiledRuntimeSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &RuntimeError{Type: RuntimeErrorTypeInvalidJSON, Details: err.Error()}
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return &RuntimeError{Type: RuntimeErrorTypeSchemaViolation, Details: strings.Join(details, "; ")}
	}
	return nil
}
