package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/machinefabric/hostbridge-go/bifaci"
)

// WithAPIVersionTag tags one request with the calling API's version tag.
func WithAPIVersionTag(tag string) bifaci.SendOption {
	return bifaci.WithAPIVersionTag(tag)
}

func (s *Session) checkSend(fn string) error {
	if fn == "" {
		return fmt.Errorf("%w: function name must not be empty", ErrInvalidArgument)
	}
	if s.State() != StateInitialized {
		return ErrLibraryNotInitialized
	}
	return nil
}

// SendMessageToParent sends fn to the host and calls cb with the response
// args. A nil cb sends without expecting an answer. cb may be called more than
// once when the host streams partial responses.
func (s *Session) SendMessageToParent(fn string, args []any, cb bifaci.Continuation, opts ...bifaci.SendOption) error {
	if err := s.checkSend(fn); err != nil {
		return err
	}
	_, err := s.correlator.Send(fn, args, cb, opts...)
	return err
}

// SendMessageRequest sends fn and waits for the host's response args.
func (s *Session) SendMessageRequest(ctx context.Context, fn string, args []any, opts ...bifaci.SendOption) ([]json.RawMessage, error) {
	if err := s.checkSend(fn); err != nil {
		return nil, err
	}
	return s.correlator.Request(ctx, fn, args, opts...)
}

// SendAndUnwrap returns the first response arg, or nil when there is none.
func (s *Session) SendAndUnwrap(ctx context.Context, fn string, args []any, opts ...bifaci.SendOption) (json.RawMessage, error) {
	resp, err := s.SendMessageRequest(ctx, fn, args, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, nil
	}
	return resp[0], nil
}

// SendAndHandleSdkError sends fn to a host that answers [error, result]. A
// non-null error is returned as *bifaci.SdkError, otherwise the result.
func (s *Session) SendAndHandleSdkError(ctx context.Context, fn string, args []any, opts ...bifaci.SendOption) (json.RawMessage, error) {
	resp, err := s.SendMessageRequest(ctx, fn, args, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp) > 0 {
		if sdkErr := bifaci.SdkErrorFromArg(resp[0]); sdkErr != nil {
			return nil, sdkErr
		}
	}
	if len(resp) < 2 {
		return nil, nil
	}
	return resp[1], nil
}

// SendAndHandleStatusAndReason sends fn to a host that answers
// [ok, reason]. A false ok is returned as an INTERNAL_ERROR carrying reason.
func (s *Session) SendAndHandleStatusAndReason(ctx context.Context, fn string, args []any, opts ...bifaci.SendOption) error {
	resp, err := s.SendMessageRequest(ctx, fn, args, opts...)
	if err != nil {
		return err
	}
	var ok bool
	if len(resp) > 0 {
		if err := json.Unmarshal(resp[0], &ok); err != nil {
			return bifaci.NewSdkError(bifaci.ErrorCodeInternalError, fmt.Sprintf("malformed status from %s", fn))
		}
	}
	if ok {
		return nil
	}
	var reason string
	if len(resp) > 1 {
		_ = json.Unmarshal(resp[1], &reason)
	}
	if reason == "" {
		reason = fmt.Sprintf("%s failed", fn)
	}
	return bifaci.NewSdkError(bifaci.ErrorCodeInternalError, reason)
}

// RegisterHandler installs handler for host-initiated calls named name. A nil
// handler removes it. Handlers may be registered before Initialize.
func (s *Session) RegisterHandler(name string, handler bifaci.HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("%w: handler name must not be empty", ErrInvalidArgument)
	}
	s.correlator.RegisterHandler(name, handler)
	return nil
}
