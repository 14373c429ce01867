package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/machinefabric/hostbridge-go/standard"
)

var (
	// ErrLibraryNotInitialized is returned by every guarded operation before
	// the handshake has completed.
	ErrLibraryNotInitialized = errors.New("The library has not yet been initialized")
	// ErrInvalidArgument is returned for malformed local arguments.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidRuntimeConfig matches handshake failures caused by a runtime
	// config the host sent but that could not be used.
	ErrInvalidRuntimeConfig = &HandshakeError{Type: HandshakeErrorTypeInvalidRuntimeConfig}
)

// HandshakeErrorType discriminates handshake failures.
type HandshakeErrorType int

const (
	HandshakeErrorTypeNoHost HandshakeErrorType = iota
	HandshakeErrorTypeSend
	HandshakeErrorTypeInvalidResponse
	HandshakeErrorTypeInvalidRuntimeConfig
	HandshakeErrorTypeAbandoned
)

// HandshakeError reports why Initialize failed.
type HandshakeError struct {
	Type    HandshakeErrorType
	Message string
	Err     error
}

func (e *HandshakeError) Error() string {
	switch e.Type {
	case HandshakeErrorTypeNoHost:
		return fmt.Sprintf("initialize: no host: %s", e.Message)
	case HandshakeErrorTypeSend:
		return fmt.Sprintf("initialize: send failed: %s", e.Message)
	case HandshakeErrorTypeInvalidResponse:
		return fmt.Sprintf("initialize: invalid host response: %s", e.Message)
	case HandshakeErrorTypeInvalidRuntimeConfig:
		return fmt.Sprintf("initialize: invalid runtime config: %s", e.Message)
	case HandshakeErrorTypeAbandoned:
		return "initialize: session was uninitialized before the host answered"
	default:
		return fmt.Sprintf("initialize: %s", e.Message)
	}
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Is matches on Type when target carries no detail.
func (e *HandshakeError) Is(target error) bool {
	t, ok := target.(*HandshakeError)
	return ok && t.Message == "" && t.Err == nil && t.Type == e.Type
}

// InvalidContextError is returned when a call is made from a frame context
// outside its allow-list.
type InvalidContextError struct {
	Allowed []standard.FrameContext
	Current standard.FrameContext
}

func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("This call is only allowed in following contexts: %s. Current context: %s.",
		jsonText(e.Allowed), jsonText(e.Current))
}

// jsonText renders v the way a browser's JSON.stringify would, without HTML
// escaping.
func jsonText(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
