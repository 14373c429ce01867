package bifaci

import (
	"encoding/json"
)

// InitializeFunc is the function name of the handshake request. It is the only
// request that may be posted before the host origin is known.
const InitializeFunc = "initialize"

// WildcardOrigin is the postMessage target used for the handshake request.
const WildcardOrigin = "*"

// MessageRequest is an outbound envelope. It is immutable once sent.
type MessageRequest struct {
	ID                 int64   `json:"id"`
	UUID               string  `json:"uuidAsString"`
	Func               string  `json:"func"`
	Args               []any   `json:"args"`
	Timestamp          int64   `json:"timestamp"`
	MonotonicTimestamp float64 `json:"monotonicTimestamp"`
	APIVersionTag      string  `json:"apiVersionTag,omitempty"`
}

// MessageResponse is an inbound envelope answering a MessageRequest.
type MessageResponse struct {
	ID                 int64             `json:"id"`
	UUID               string            `json:"uuidAsString,omitempty"`
	Args               []json.RawMessage `json:"args,omitempty"`
	MonotonicTimestamp float64           `json:"monotonicTimestamp,omitempty"`
	IsPartialResponse  bool              `json:"isPartialResponse,omitempty"`
}

// HostCall is an inbound envelope that carries a func name instead of
// answering a request: the host invoking a handler registered by the page.
type HostCall struct {
	ID   *int64            `json:"id,omitempty"`
	Func string            `json:"func"`
	Args []json.RawMessage `json:"args,omitempty"`
}

// inboundMessage is the union of every envelope the host can send.
type inboundMessage struct {
	ID                 *int64            `json:"id"`
	UUID               string            `json:"uuidAsString"`
	Func               string            `json:"func"`
	Args               []json.RawMessage `json:"args"`
	MonotonicTimestamp float64           `json:"monotonicTimestamp"`
	IsPartialResponse  bool              `json:"isPartialResponse"`
}

// isCall reports whether the message is a host-initiated call.
func (m *inboundMessage) isCall() bool {
	return m.Func != ""
}

func (m *inboundMessage) response() *MessageResponse {
	resp := &MessageResponse{
		UUID:               m.UUID,
		Args:               m.Args,
		MonotonicTimestamp: m.MonotonicTimestamp,
		IsPartialResponse:  m.IsPartialResponse,
	}
	if m.ID != nil {
		resp.ID = *m.ID
	}
	return resp
}

func (m *inboundMessage) call() *HostCall {
	return &HostCall{ID: m.ID, Func: m.Func, Args: m.Args}
}
