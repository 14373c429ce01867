package bifaci

import (
	"io"
	"log/slog"
	"sync"
)

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

// Transport moves envelopes between the page and its host.
type Transport interface {
	// Send writes one request envelope to the host.
	Send(req *MessageRequest) error
	// SetInboundHandler installs the single dispatcher for inbound envelopes.
	SetInboundHandler(fn func(data []byte))
	// Framed reports whether this is the window-messaging transport.
	Framed() bool
	// TargetOrigin returns the validated host origin, empty if not yet known.
	TargetOrigin() string
	// Close detaches the transport; later sends fail with ErrTransportClosed.
	Close() error
}

// NativeBridge is the host-injected primitive used when there is no real
// window hierarchy: a synchronous send and one inbound callback slot.
type NativeBridge interface {
	FramelessPostMessage(msg string) error
	SetOnNativeMessage(fn func(data []byte))
}

// Environment describes what the page can see of its host.
type Environment struct {
	Window       Window
	NativeBridge NativeBridge
}

// SelectTransport picks the transport for a session: frameless when a native
// bridge is present, framed otherwise.
func SelectTransport(env Environment, validator OriginValidator, logger *slog.Logger) (Transport, error) {
	if env.NativeBridge != nil {
		return NewFramelessTransport(env.NativeBridge, logger), nil
	}
	return NewFramedTransport(env.Window, validator, logger)
}

// =========================================================================
// Framed transport
// =========================================================================

// FramedTransport talks to the host window over postMessage.
type FramedTransport struct {
	self      Window
	target    Window
	validator OriginValidator
	logger    *slog.Logger

	mu           sync.RWMutex
	targetOrigin string
	handler      func([]byte)
	closed       bool
	unsubscribe  func()
}

// NewFramedTransport creates a framed transport for the given page window and
// subscribes to its messages.
func NewFramedTransport(self Window, validator OriginValidator, logger *slog.Logger) (*FramedTransport, error) {
	if self == nil {
		return nil, &TransportError{Type: TransportErrorTypeNoHost, Message: "no window"}
	}
	target := hostWindow(self)
	if target == nil {
		return nil, &TransportError{Type: TransportErrorTypeNoHost, Message: "window has no parent or top window"}
	}
	if validator == nil {
		validator = func(string) bool { return false }
	}
	t := &FramedTransport{
		self:      self,
		target:    target,
		validator: validator,
		logger:    orDiscard(logger),
	}
	t.unsubscribe = self.AddMessageListener(t.HandleMessage)
	return t, nil
}

// Send posts the request. Only the handshake may go out before the host origin
// is validated, and only to the wildcard origin.
func (t *FramedTransport) Send(req *MessageRequest) error {
	t.mu.RLock()
	origin := t.targetOrigin
	closed := t.closed
	t.mu.RUnlock()

	if closed {
		return ErrTransportClosed
	}
	if origin == "" {
		if req.Func != InitializeFunc {
			return &TransportError{Type: TransportErrorTypeOriginNotValidated, Message: req.Func}
		}
		origin = WildcardOrigin
	}

	data, err := EncodeRequest(req)
	if err != nil {
		return &TransportError{Type: TransportErrorTypeEncode, Message: err.Error(), Err: err}
	}
	if err := t.target.PostMessage(data, origin); err != nil {
		return &TransportError{Type: TransportErrorTypeSend, Message: err.Error(), Err: err}
	}
	t.logger.Debug("posted message", "func", req.Func, "id", req.ID, "target_origin", origin)
	return nil
}

// HandleMessage filters one window message and forwards it to the dispatcher.
// Messages from other windows or untrusted origins are dropped. The first
// trusted message pins the host origin for the rest of the session.
func (t *FramedTransport) HandleMessage(evt MessageEvent) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if evt.Source != nil && evt.Source != t.target {
		t.mu.Unlock()
		t.logger.Debug("dropped message from foreign window", "origin", evt.Origin)
		return
	}
	switch {
	case t.targetOrigin != "":
		if evt.Origin != t.targetOrigin {
			t.mu.Unlock()
			t.logger.Debug("dropped message from unexpected origin", "origin", evt.Origin, "expected", t.targetOrigin)
			return
		}
	case t.validator(evt.Origin):
		t.targetOrigin = evt.Origin
		t.logger.Debug("pinned host origin", "origin", evt.Origin)
	default:
		t.mu.Unlock()
		t.logger.Debug("dropped message from untrusted origin", "origin", evt.Origin)
		return
	}
	handler := t.handler
	t.mu.Unlock()

	if handler != nil {
		handler(evt.Data)
	}
}

// SetTargetOrigin pins the host origin explicitly.
func (t *FramedTransport) SetTargetOrigin(origin string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.targetOrigin = origin
}

func (t *FramedTransport) SetInboundHandler(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

func (t *FramedTransport) Framed() bool { return true }

func (t *FramedTransport) TargetOrigin() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.targetOrigin
}

func (t *FramedTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.handler = nil
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return nil
}

// =========================================================================
// Frameless transport
// =========================================================================

// FramelessTransport talks to a native host through a NativeBridge.
type FramelessTransport struct {
	bridge NativeBridge
	logger *slog.Logger

	mu      sync.RWMutex
	handler func([]byte)
	closed  bool
}

// NewFramelessTransport wraps bridge and installs the inbound dispatcher.
func NewFramelessTransport(bridge NativeBridge, logger *slog.Logger) *FramelessTransport {
	t := &FramelessTransport{bridge: bridge, logger: orDiscard(logger)}
	bridge.SetOnNativeMessage(t.onNativeMessage)
	return t
}

func (t *FramelessTransport) Send(req *MessageRequest) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTransportClosed
	}

	data, err := EncodeRequest(req)
	if err != nil {
		return &TransportError{Type: TransportErrorTypeEncode, Message: err.Error(), Err: err}
	}
	if err := t.bridge.FramelessPostMessage(string(data)); err != nil {
		return &TransportError{Type: TransportErrorTypeSend, Message: err.Error(), Err: err}
	}
	t.logger.Debug("posted native message", "func", req.Func, "id", req.ID)
	return nil
}

func (t *FramelessTransport) onNativeMessage(data []byte) {
	t.mu.RLock()
	handler := t.handler
	closed := t.closed
	t.mu.RUnlock()
	if closed || handler == nil {
		return
	}
	handler(data)
}

func (t *FramelessTransport) SetInboundHandler(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

func (t *FramelessTransport) Framed() bool { return false }

func (t *FramelessTransport) TargetOrigin() string { return "" }

func (t *FramelessTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.handler = nil
	return nil
}
