// Package naa relays nested app authentication traffic from an embedded page
// to the top-level window and hands the responses back to the page.
package naa

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/machinefabric/hostbridge-go/bifaci"
)

const (
	// ExecuteFunc is the func name of a relayed request envelope.
	ExecuteFunc = "nestedAppAuth.execute"
	// MessageEvent is the only event name a Bridge dispatches.
	MessageEvent = "message"

	MessageTypeRequest  = "NestedAppAuthRequest"
	MessageTypeResponse = "NestedAppAuthResponse"
)

var (
	// ErrTopWindowUnavailable is returned by PostMessage when the window has
	// no reachable top window.
	ErrTopWindowUnavailable = errors.New("top window is not available")
	// ErrInvalidMessage is returned by PostMessage for input that is not a
	// JSON object.
	ErrInvalidMessage = errors.New("invalid nested app auth message")
)

// OriginError reports an unusable top origin.
type OriginError struct {
	Origin string
	Reason string
}

func (e *OriginError) Error() string {
	return fmt.Sprintf("invalid top origin %q: %s", e.Origin, e.Reason)
}

// Window is a page window that can carry a bridge.
type Window interface {
	bifaci.Window
	NestedAppAuthBridge() *Bridge
	SetNestedAppAuthBridge(b *Bridge)
}

// Listener receives response payloads. Listeners are compared by pointer, so
// keep the pointer to remove it later.
type Listener struct {
	fn func(msg string)
}

// NewListener wraps fn.
func NewListener(fn func(msg string)) *Listener {
	return &Listener{fn: fn}
}

// Bridge is the object installed on a window by Initialize.
type Bridge struct {
	win       Window
	topOrigin string
	logger    *slog.Logger
	start     time.Time

	mu          sync.Mutex
	listeners   []*Listener
	nextID      int64
	unsubscribe func()
}

// envelope is a relayed request.
type envelope struct {
	ID                 int64   `json:"id"`
	UUID               string  `json:"uuidAsString"`
	Func               string  `json:"func"`
	Args               []any   `json:"args"`
	Timestamp          int64   `json:"timestamp"`
	MonotonicTimestamp float64 `json:"monotonicTimestamp"`
	Data               string  `json:"data"`
}

type messageProbe struct {
	MessageType string `json:"messageType"`
}

// Initialize installs a bridge on win relaying to topOrigin. topOrigin must be
// a bare https origin, optionally with a trailing slash. A window that already carries a bridge is left as is.
func Initialize(win Window, topOrigin string, enableLogging bool) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if enableLogging {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return InitializeWithLogger(win, topOrigin, logger)
}

// InitializeWithLogger is Initialize with a caller-supplied logger.
func InitializeWithLogger(win Window, topOrigin string, logger *slog.Logger) error {
	topOrigin, err := normalizeTopOrigin(topOrigin)
	if err != nil {
		return err
	}
	if win == nil {
		return errors.New("naa: nil window")
	}
	if win.NestedAppAuthBridge() != nil {
		logger.Debug("nested app auth bridge already installed")
		return nil
	}

	b := &Bridge{
		win:       win,
		topOrigin: topOrigin,
		logger:    logger,
		start:     time.Now(),
	}
	b.unsubscribe = win.AddMessageListener(b.handleMessage)
	win.SetNestedAppAuthBridge(b)
	logger.Debug("nested app auth bridge installed", "top_origin", topOrigin)
	return nil
}

// normalizeTopOrigin returns origin as scheme://host[:port]. Only a bare
// https origin is accepted. A single trailing slash is allowed and dropped.
func normalizeTopOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", &OriginError{Origin: origin, Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return "", &OriginError{Origin: origin, Reason: "not an absolute URL"}
	}
	if u.Scheme != "https" {
		return "", &OriginError{Origin: origin, Reason: "scheme must be https"}
	}
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return "", &OriginError{Origin: origin, Reason: "must be a bare origin"}
	}
	return u.Scheme + "://" + strings.ToLower(u.Host), nil
}

// TopOrigin returns the origin the bridge relays to.
func (b *Bridge) TopOrigin() string { return b.topOrigin }

// AddEventListener subscribes l to event. Only "message" is dispatched.
func (b *Bridge) AddEventListener(event string, l *Listener) {
	if event != MessageEvent || l == nil {
		b.logger.Debug("ignored listener", "event", event)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.listeners, l) {
		b.listeners = append(b.listeners, l)
	}
}

// RemoveEventListener unsubscribes l from event.
func (b *Bridge) RemoveEventListener(event string, l *Listener) {
	if event != MessageEvent {
		b.logger.Debug("ignored listener removal", "event", event)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = slices.DeleteFunc(b.listeners, func(x *Listener) bool { return x == l })
}

// PostMessage relays a request message to the top window. Messages that are
// not requests, and calls made from the top window itself, are ignored.
func (b *Bridge) PostMessage(msg string) error {
	var probe messageProbe
	if err := json.Unmarshal([]byte(msg), &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if probe.MessageType != MessageTypeRequest {
		b.logger.Debug("ignored non-request message", "message_type", probe.MessageType)
		return nil
	}

	top := b.win.Top()
	if top == nil {
		return ErrTopWindowUnavailable
	}
	if top == bifaci.Window(b.win) {
		b.logger.Debug("not relaying, window is already the top window")
		return nil
	}

	env := b.newEnvelope(msg)
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := top.PostMessage(data, b.topOrigin); err != nil {
		return err
	}
	b.logger.Debug("relayed nested app auth request", "id", env.ID)
	return nil
}

func (b *Bridge) newEnvelope(msg string) *envelope {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.mu.Unlock()

	now := time.Now()
	return &envelope{
		ID:                 id,
		UUID:               uuid.NewString(),
		Func:               ExecuteFunc,
		Args:               []any{},
		Timestamp:          now.UnixMilli(),
		MonotonicTimestamp: float64(now.Sub(b.start).Microseconds()) / 1000,
		Data:               msg,
	}
}

// handleMessage delivers response payloads from the top origin.
func (b *Bridge) handleMessage(evt bifaci.MessageEvent) {
	if evt.Origin != b.topOrigin {
		return
	}
	payload, ok := extractPayload(evt.Data)
	if !ok {
		b.logger.Debug("dropped message without payload")
		return
	}
	var probe messageProbe
	if err := json.Unmarshal([]byte(payload), &probe); err != nil || probe.MessageType != MessageTypeResponse {
		b.logger.Debug("dropped non-response message")
		return
	}

	b.mu.Lock()
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()
	for _, l := range listeners {
		l.fn(payload)
	}
}

// extractPayload returns the NAA message carried by an inbound envelope, from
// its data field or else its first arg. String payloads are returned as is,
// objects as their JSON text.
func extractPayload(data []byte) (string, bool) {
	var env struct {
		Data json.RawMessage   `json:"data"`
		Args []json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false
	}
	if p, ok := payloadText(env.Data); ok {
		return p, true
	}
	if len(env.Args) > 0 {
		return payloadText(env.Args[0])
	}
	return "", false
}

func payloadText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{':
		return string(raw), true
	default:
		return "", false
	}
}

// Close stops listening for window messages and removes the bridge from its
// window.
func (b *Bridge) Close() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.listeners = nil
	b.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	if b.win.NestedAppAuthBridge() == b {
		b.win.SetNestedAppAuthBridge(nil)
	}
}
