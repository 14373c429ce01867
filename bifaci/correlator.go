package bifaci

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Continuation receives the args of a response. It is the only continuation
// shape; callback and blocking call styles are both adapters over it.
type Continuation func(args []json.RawMessage)

// HandlerFunc handles a host-initiated call.
type HandlerFunc func(args []json.RawMessage)

// SendOption customizes one outbound request.
type SendOption func(*MessageRequest)

// WithAPIVersionTag tags the request with the calling API's version tag.
func WithAPIVersionTag(tag string) SendOption {
	return func(req *MessageRequest) {
		req.APIVersionTag = tag
	}
}

var (
	// ErrNoTransport is returned by Send when no transport is attached.
	ErrNoTransport = errors.New("no transport attached")
	// ErrEmptyFunc is returned by Send for an empty function name.
	ErrEmptyFunc = errors.New("function name must not be empty")
)

type pendingEntry struct {
	fn   string
	cont Continuation
}

// Correlator tracks outstanding requests and routes inbound envelopes back to
// the continuation registered for their id.
type Correlator struct {
	mu        sync.Mutex
	transport Transport
	nextID    int64
	pending   map[int64]*pendingEntry
	handlers  map[string]HandlerFunc
	logger    *slog.Logger
	start     time.Time
	now       func() time.Time
}

// NewCorrelator creates a correlator with no transport attached.
func NewCorrelator(logger *slog.Logger) *Correlator {
	c := &Correlator{
		pending:  make(map[int64]*pendingEntry),
		handlers: make(map[string]HandlerFunc),
		logger:   orDiscard(logger),
		now:      time.Now,
	}
	c.start = c.now()
	return c
}

// Attach routes outbound requests to t and installs the correlator as t's
// inbound dispatcher.
func (c *Correlator) Attach(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
	if t != nil {
		t.SetInboundHandler(c.HandleInbound)
	}
}

// Detach forgets the current transport. Pending entries are kept.
func (c *Correlator) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = nil
}

// Send allocates the next id, records cont under it and hands the envelope to
// the transport. A nil cont sends fire-and-forget. Ids are never reused.
func (c *Correlator) Send(fn string, args []any, cont Continuation, opts ...SendOption) (int64, error) {
	if fn == "" {
		return 0, ErrEmptyFunc
	}

	c.mu.Lock()
	t := c.transport
	if t == nil {
		c.mu.Unlock()
		return 0, ErrNoTransport
	}
	id := c.nextID
	c.nextID++
	req := c.newRequestLocked(id, fn, args)
	for _, opt := range opts {
		opt(req)
	}
	if cont != nil {
		c.pending[id] = &pendingEntry{fn: fn, cont: cont}
	}
	c.mu.Unlock()

	if err := t.Send(req); err != nil {
		c.forget(id)
		return 0, err
	}
	c.logger.Debug("sent request", "func", fn, "id", id)
	return id, nil
}

// Request sends and blocks until the first response arrives or ctx is done.
// On cancellation the pending entry is dropped.
func (c *Correlator) Request(ctx context.Context, fn string, args []any, opts ...SendOption) ([]json.RawMessage, error) {
	ch := make(chan []json.RawMessage, 1)
	id, err := c.Send(fn, args, func(resp []json.RawMessage) {
		select {
		case ch <- resp:
		default:
		}
	}, opts...)
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

// HandleInbound dispatches one raw inbound envelope. An envelope whose id is
// pending is a response even when it echoes a func name. Responses for unknown
// ids are dropped. A partial response leaves its entry in place for more
// deliveries.
func (c *Correlator) HandleInbound(data []byte) {
	msg, err := decodeInbound(data)
	if err != nil {
		c.logger.Debug("dropped undecodable message", "error", err)
		return
	}
	if msg.isCall() && !c.isPending(msg.ID) {
		c.dispatchCall(msg.call())
		return
	}
	c.HandleResponse(msg.response())
}

func (c *Correlator) isPending(id *int64) bool {
	if id == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[*id]
	return ok
}

// HandleResponse resolves a decoded response.
func (c *Correlator) HandleResponse(resp *MessageResponse) {
	c.mu.Lock()
	entry, ok := c.pending[resp.ID]
	if ok && !resp.IsPartialResponse {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropped response for unknown id", "id", resp.ID)
		return
	}
	c.logger.Debug("received response", "func", entry.fn, "id", resp.ID, "partial", resp.IsPartialResponse)
	// Invoked without the lock so the continuation can send again.
	entry.cont(resp.Args)
}

func (c *Correlator) dispatchCall(call *HostCall) {
	c.mu.Lock()
	handler, ok := c.handlers[call.Func]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("no handler for host call", "func", call.Func)
		return
	}
	handler(call.Args)
}

// RegisterHandler installs the handler for host calls named fn, replacing any
// previous one. A nil handler removes it.
func (c *Correlator) RegisterHandler(fn string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.handlers, fn)
		return
	}
	c.handlers[fn] = handler
}

// Reset drops every pending entry without invoking it. The id counter keeps
// counting so stale responses can never match a new request.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[int64]*pendingEntry)
}

// Pending returns the number of outstanding entries.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) forget(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Correlator) newRequestLocked(id int64, fn string, args []any) *MessageRequest {
	now := c.now()
	if args == nil {
		args = []any{}
	}
	return &MessageRequest{
		ID:                 id,
		UUID:               uuid.NewString(),
		Func:               fn,
		Args:               args,
		Timestamp:          now.UnixMilli(),
		MonotonicTimestamp: float64(now.Sub(c.start).Microseconds()) / 1000,
	}
}
