// Package bifacitest provides in-memory windows and hosts for testing code
// that talks to a host through the bifaci transports.
package bifacitest

import (
	"encoding/json"
	"sync"

	"github.com/machinefabric/hostbridge-go/bifaci"
)

// Posted is one message posted to a Window.
type Posted struct {
	Data         []byte
	TargetOrigin string
}

// Window is an in-memory bifaci.Window.
type Window struct {
	Origin string

	mu        sync.Mutex
	parent    bifaci.Window
	top       bifaci.Window
	listeners map[int]func(bifaci.MessageEvent)
	nextID    int
	posted    []Posted
	onPost    func(data []byte, targetOrigin string)
}

// NewWindow creates a top-level window with the given origin.
func NewWindow(origin string) *Window {
	w := &Window{Origin: origin, listeners: make(map[int]func(bifaci.MessageEvent))}
	w.top = w
	return w
}

// Embed makes child an iframe of parent.
func Embed(child, parent *Window) {
	child.mu.Lock()
	defer child.mu.Unlock()
	child.parent = parent
	child.top = parent.Top()
}

// SetTop overrides the top window; nil makes it unreachable.
func (w *Window) SetTop(top bifaci.Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.top = top
}

// OnPost installs a hook run for every message posted to w.
func (w *Window) OnPost(fn func(data []byte, targetOrigin string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onPost = fn
}

func (w *Window) PostMessage(data []byte, targetOrigin string) error {
	w.mu.Lock()
	w.posted = append(w.posted, Posted{Data: append([]byte(nil), data...), TargetOrigin: targetOrigin})
	hook := w.onPost
	w.mu.Unlock()
	if hook != nil {
		hook(data, targetOrigin)
	}
	return nil
}

func (w *Window) Parent() bifaci.Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parent
}

func (w *Window) Top() bifaci.Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.top
}

func (w *Window) AddMessageListener(fn func(bifaci.MessageEvent)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

// Deliver dispatches evt to every listener of w.
func (w *Window) Deliver(evt bifaci.MessageEvent) {
	w.mu.Lock()
	fns := make([]func(bifaci.MessageEvent), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

// Posted returns a copy of every message posted to w.
func (w *Window) Posted() []Posted {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Posted(nil), w.posted...)
}

// Listeners returns the number of active message listeners.
func (w *Window) Listeners() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// =========================================================================
// Host
// =========================================================================

// Request is a request as the host decoded it.
type Request struct {
	ID                 int64             `json:"id"`
	UUID               string            `json:"uuidAsString"`
	Func               string            `json:"func"`
	Args               []json.RawMessage `json:"args"`
	Timestamp          int64             `json:"timestamp"`
	MonotonicTimestamp float64           `json:"monotonicTimestamp"`
	APIVersionTag      string            `json:"apiVersionTag"`
	TargetOrigin       string            `json:"-"`
}

// Responder computes the response args for a request; ok=false sends nothing.
type Responder func(req Request) (args []any, ok bool)

// Host simulates the embedding application on the far side of a transport.
type Host struct {
	send func(data []byte)

	mu         sync.Mutex
	requests   []Request
	responders map[string]Responder
}

func newHost(send func([]byte)) *Host {
	return &Host{send: send, responders: make(map[string]Responder)}
}

// NewFramedHost creates a host window with the given origin and an embedded
// child window for the page under test.
func NewFramedHost(origin string) (*Host, *Window, *Window) {
	parent := NewWindow(origin)
	child := NewWindow("https://app.example.com")
	Embed(child, parent)

	h := newHost(func(data []byte) {
		child.Deliver(bifaci.MessageEvent{Origin: origin, Source: parent, Data: data})
	})
	parent.OnPost(func(data []byte, targetOrigin string) {
		h.receive(data, targetOrigin)
	})
	return h, parent, child
}

// NativeBridge is an in-memory bifaci.NativeBridge.
type NativeBridge struct {
	mu        sync.Mutex
	onMessage func([]byte)
	onPost    func(msg string)
	posted    []string
}

func (b *NativeBridge) FramelessPostMessage(msg string) error {
	b.mu.Lock()
	b.posted = append(b.posted, msg)
	hook := b.onPost
	b.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return nil
}

func (b *NativeBridge) SetOnNativeMessage(fn func(data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMessage = fn
}

// Deliver invokes the installed native message callback.
func (b *NativeBridge) Deliver(data []byte) {
	b.mu.Lock()
	fn := b.onMessage
	b.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// Posted returns every message sent through the bridge.
func (b *NativeBridge) Posted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.posted...)
}

// NewNativeHost creates a host reached through an in-memory native bridge.
// Responses are wrapped as {"data": envelope} the way native hosts send them.
func NewNativeHost() (*Host, *NativeBridge) {
	bridge := &NativeBridge{}
	h := newHost(func(data []byte) {
		wrapped, _ := json.Marshal(map[string]json.RawMessage{"data": data})
		bridge.Deliver(wrapped)
	})
	bridge.onPost = func(msg string) {
		h.receive([]byte(msg), "")
	}
	return h, bridge
}

// Handle installs a responder for requests named fn.
func (h *Host) Handle(fn string, r Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responders[fn] = r
}

func (h *Host) receive(data []byte, targetOrigin string) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	req.TargetOrigin = targetOrigin

	h.mu.Lock()
	h.requests = append(h.requests, req)
	r := h.responders[req.Func]
	h.mu.Unlock()

	if r == nil {
		return
	}
	if args, ok := r(req); ok {
		h.Respond(req.ID, args...)
	}
}

// Requests returns every request the host received.
func (h *Host) Requests() []Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Request(nil), h.requests...)
}

// Last returns the most recent request named fn.
func (h *Host) Last(fn string) (Request, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.requests) - 1; i >= 0; i-- {
		if h.requests[i].Func == fn {
			return h.requests[i], true
		}
	}
	return Request{}, false
}

// Respond sends a final response for id.
func (h *Host) Respond(id int64, args ...any) {
	h.sendEnvelope(map[string]any{"id": id, "args": nonNil(args)})
}

// RespondPartial sends a partial response for id.
func (h *Host) RespondPartial(id int64, args ...any) {
	h.sendEnvelope(map[string]any{"id": id, "args": nonNil(args), "isPartialResponse": true})
}

// Call invokes a page-side handler.
func (h *Host) Call(fn string, args ...any) {
	h.sendEnvelope(map[string]any{"func": fn, "args": nonNil(args)})
}

// SendRaw delivers data as-is.
func (h *Host) SendRaw(data []byte) {
	h.send(data)
}

func (h *Host) sendEnvelope(env map[string]any) {
	data, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	h.send(data)
}

func nonNil(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
