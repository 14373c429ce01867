package bifaci

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeRequest serializes a request envelope to its JSON wire form.
func EncodeRequest(req *MessageRequest) ([]byte, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.Args == nil {
		// The host indexes args unconditionally; never send null.
		clone := *req
		clone.Args = []any{}
		req = &clone
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request %q: %w", req.Func, err)
	}
	return data, nil
}

// DecodeResponse parses a response envelope. It fails if the id is missing.
func DecodeResponse(data []byte) (*MessageResponse, error) {
	msg, err := decodeInbound(data)
	if err != nil {
		return nil, err
	}
	if msg.ID == nil {
		return nil, errors.New("response without id")
	}
	return msg.response(), nil
}

// decodeInbound parses any inbound envelope. Native hosts wrap the envelope as
// {"data": envelope} and some of them send the envelope as a JSON string, so
// both wrappings are peeled before decoding.
func decodeInbound(data []byte) (*inboundMessage, error) {
	data, err := unwrapNativeEvent(data)
	if err != nil {
		return nil, err
	}
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode inbound message: %w", err)
	}
	if msg.ID == nil && msg.Func == "" {
		return nil, errors.New("inbound message has neither id nor func")
	}
	return &msg, nil
}

func unwrapNativeEvent(data []byte) ([]byte, error) {
	for depth := 0; depth < 3; depth++ {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			return nil, errors.New("empty inbound message")
		}
		switch trimmed[0] {
		case '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, fmt.Errorf("decode string-wrapped message: %w", err)
			}
			data = []byte(s)
		case '{':
			var probe struct {
				ID   json.RawMessage `json:"id"`
				Func string          `json:"func"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(trimmed, &probe); err != nil {
				return nil, fmt.Errorf("decode inbound message: %w", err)
			}
			if probe.ID != nil || probe.Func != "" || probe.Data == nil {
				return trimmed, nil
			}
			data = probe.Data
		default:
			return nil, fmt.Errorf("inbound message is not an object")
		}
	}
	return nil, errors.New("inbound message nested too deeply")
}
