package capability

import (
	"bytes"
	"encoding/json"
)

// Runtime is the negotiated description of the host for one session.
type Runtime struct {
	APIVersion              int             `json:"apiVersion"`
	HostVersionsInfo        json.RawMessage `json:"hostVersionsInfo,omitempty"`
	IsNAAChannelRecommended bool            `json:"isNAAChannelRecommended,omitempty"`
	IsLegacyTeams           bool            `json:"isLegacyTeams,omitempty"`
	Supports                Supports        `json:"supports"`
}

// ParseRuntime decodes a host-supplied runtime config. raw may be the object
// itself or a JSON string holding it. null or empty input yields (nil, nil) so
// callers can fall back to the compatibility table.
func ParseRuntime(raw json.RawMessage) (*Runtime, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, &RuntimeError{Type: RuntimeErrorTypeInvalidJSON, Details: err.Error()}
		}
		data = bytes.TrimSpace([]byte(inner))
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return nil, nil
		}
	}

	if err := ValidateRuntimeJSON(data); err != nil {
		return nil, err
	}

	var rt Runtime
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, &RuntimeError{Type: RuntimeErrorTypeInvalidJSON, Details: err.Error()}
	}
	if rt.Supports == nil {
		rt.Supports = Supports{}
	}
	return &rt, nil
}

// IsSupported reports whether path is present in the runtime's tree.
func (r *Runtime) IsSupported(path string) bool {
	if r == nil {
		return false
	}
	return r.Supports.Has(path)
}

// Clone returns a deep copy.
func (r *Runtime) Clone() *Runtime {
	if r == nil {
		return nil
	}
	out := *r
	if r.HostVersionsInfo != nil {
		out.HostVersionsInfo = append(json.RawMessage(nil), r.HostVersionsInfo...)
	}
	out.Supports = r.Supports.Clone()
	if out.Supports == nil {
		out.Supports = Supports{}
	}
	return &out
}
