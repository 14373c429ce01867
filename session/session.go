// Package session owns the lifecycle of one embedded page's conversation
// with its host: the initialize handshake, the negotiated host description,
// the frame context guard and the send helpers capability wrappers build on.
package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/machinefabric/hostbridge-go/bifaci"
	"github.com/machinefabric/hostbridge-go/capability"
	"github.com/machinefabric/hostbridge-go/origins"
	"github.com/machinefabric/hostbridge-go/standard"
)

// DefaultClientSupportedSDKVersion is assumed when the host does not report
// the SDK version it supports.
const DefaultClientSupportedSDKVersion = "2.0.1"

// State is the handshake state of a session.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingHost
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingHost:
		return "awaitingHost"
	case StateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// initCall is one in-flight handshake. Every Initialize caller of the same
// attempt waits on done and reads err.
type initCall struct {
	done chan struct{}
	err  error
}

// Session is the page's connection to its host.
type Session struct {
	logger         *slog.Logger
	diagnostic     bool
	env            bifaci.Environment
	libraryVersion string
	extraOrigins   []string
	resolver       origins.Resolver
	correlator     *bifaci.Correlator

	mu             sync.Mutex
	state          State
	init           *initCall
	transport      bifaci.Transport
	trust          *origins.TrustSet
	frameContext   standard.FrameContext
	hostClientType standard.HostClientType
	sdkVersion     string
	runtime        *capability.Runtime
}

// New creates an uninitialized session.
func New(opts ...Option) *Session {
	s := &Session{libraryVersion: DefaultLibraryVersion}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		if s.diagnostic {
			s.logger = diagnosticLogger()
		} else {
			s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	}
	s.correlator = bifaci.NewCorrelator(s.logger)
	return s
}

// Initialize performs the handshake. Calls made while a handshake is in
// flight, or after it succeeded, share its result. extraOrigins extend the
// trust set and are forwarded to the host; they only take effect on the call
// that starts the attempt. Cancelling ctx stops waiting but leaves the
// handshake running.
func (s *Session) Initialize(ctx context.Context, extraOrigins ...string) error {
	s.mu.Lock()
	if call := s.init; call != nil {
		s.mu.Unlock()
		return wait(ctx, call)
	}
	call := &initCall{done: make(chan struct{})}
	s.init = call
	s.state = StateAwaitingHost
	s.mu.Unlock()

	s.startHandshake(ctx, call, extraOrigins)
	return wait(ctx, call)
}

// InitializeAsync runs Initialize and reports the result to cb.
func (s *Session) InitializeAsync(cb func(error), extraOrigins ...string) {
	go func() {
		err := s.Initialize(context.Background(), extraOrigins...)
		if cb != nil {
			cb(err)
		}
	}()
}

func wait(ctx context.Context, call *initCall) error {
	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) startHandshake(ctx context.Context, call *initCall, extraOrigins []string) {
	trust := s.resolveTrust(ctx, extraOrigins)

	transport, err := bifaci.SelectTransport(s.env, trust.Contains, s.logger)
	if err != nil {
		s.fail(call, &HandshakeError{Type: HandshakeErrorTypeNoHost, Message: err.Error(), Err: err})
		return
	}

	s.mu.Lock()
	if s.init != call {
		s.mu.Unlock()
		_ = transport.Close()
		return
	}
	s.transport = transport
	s.trust = trust
	s.mu.Unlock()
	s.correlator.Attach(transport)

	args := []any{s.libraryVersion}
	if reported := s.reportedOrigins(extraOrigins); len(reported) > 0 {
		args = append(args, reported)
	}
	s.logger.Debug("starting handshake", "framed", transport.Framed(), "library_version", s.libraryVersion)

	// The host may answer before Send returns.
	_, err = s.correlator.Send(bifaci.InitializeFunc, args, func(resp []json.RawMessage) {
		s.completeHandshake(call, resp)
	})
	if err != nil {
		s.fail(call, &HandshakeError{Type: HandshakeErrorTypeSend, Message: err.Error(), Err: err})
	}
}

// reportedOrigins is the origin list sent to the host: the configured extras
// followed by the per-call extras, without duplicates.
func (s *Session) reportedOrigins(extraOrigins []string) []string {
	seen := make(map[string]bool, len(s.extraOrigins)+len(extraOrigins))
	var out []string
	for _, list := range [][]string{s.extraOrigins, extraOrigins} {
		for _, o := range list {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	return out
}

// resolveTrust builds the trust set for one handshake. A failing resolver
// leaves the static patterns in place.
func (s *Session) resolveTrust(ctx context.Context, extraOrigins []string) *origins.TrustSet {
	var resolved []string
	if s.resolver != nil {
		list, err := s.resolver.Resolve(ctx)
		if err != nil {
			s.logger.Warn("origin resolution failed, using static origins", "error", err)
		} else {
			resolved = list
		}
	}
	return origins.NewTrustSet(standard.ValidOrigins, s.extraOrigins, extraOrigins, resolved)
}

// handshakeResponse is the decoded initialize response.
type handshakeResponse struct {
	frameContext   standard.FrameContext
	hostClientType standard.HostClientType
	sdkVersion     string
	runtimeConfig  json.RawMessage
}

func decodeHandshake(args []json.RawMessage) (*handshakeResponse, error) {
	resp := &handshakeResponse{}
	str := func(i int) (string, error) {
		if i >= len(args) || len(args[i]) == 0 || string(args[i]) == "null" {
			return "", nil
		}
		var v string
		if err := json.Unmarshal(args[i], &v); err != nil {
			return "", &HandshakeError{Type: HandshakeErrorTypeInvalidResponse, Message: "argument is not a string", Err: err}
		}
		return v, nil
	}

	fc, err := str(0)
	if err != nil {
		return nil, err
	}
	hct, err := str(1)
	if err != nil {
		return nil, err
	}
	version, err := str(2)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = DefaultClientSupportedSDKVersion
	}
	resp.frameContext = standard.FrameContext(fc)
	resp.hostClientType = standard.HostClientType(hct)
	resp.sdkVersion = version
	if len(args) > 3 {
		resp.runtimeConfig = args[3]
	}
	return resp, nil
}

func (s *Session) completeHandshake(call *initCall, args []json.RawMessage) {
	resp, err := decodeHandshake(args)
	if err != nil {
		s.fail(call, err)
		return
	}

	rt, err := capability.ParseRuntime(resp.runtimeConfig)
	if err != nil {
		s.fail(call, &HandshakeError{Type: HandshakeErrorTypeInvalidRuntimeConfig, Message: err.Error(), Err: err})
		return
	}
	if rt == nil {
		rt, err = capability.GenerateBackCompatRuntimeConfig(resp.sdkVersion, resp.hostClientType)
		if err != nil {
			s.logger.Warn("could not apply version table, using base capabilities", "version", resp.sdkVersion, "error", err)
		}
	}

	s.mu.Lock()
	if s.init != call {
		s.mu.Unlock()
		s.logger.Debug("dropped handshake response for a discarded attempt")
		return
	}
	s.frameContext = resp.frameContext
	s.hostClientType = resp.hostClientType
	s.sdkVersion = resp.sdkVersion
	s.runtime = rt
	s.state = StateInitialized
	s.mu.Unlock()

	s.logger.Debug("handshake complete",
		"frame_context", resp.frameContext,
		"host_client_type", resp.hostClientType,
		"sdk_version", resp.sdkVersion,
		"api_version", rt.APIVersion)
	close(call.done)
}

// fail ends call with err and returns the session to Uninitialized so a later
// Initialize can retry.
func (s *Session) fail(call *initCall, err error) {
	s.mu.Lock()
	if s.init != call {
		s.mu.Unlock()
		return
	}
	transport := s.transport
	s.resetLocked()
	s.mu.Unlock()

	s.teardown(transport)
	s.logger.Warn("handshake failed", "error", err)
	call.err = err
	close(call.done)
}

// Uninitialize discards the session state and every pending request. Pending
// continuations are never invoked. Callers still waiting on an unfinished
// handshake get a HandshakeError of type Abandoned.
func (s *Session) Uninitialize() {
	s.mu.Lock()
	call := s.init
	abandoned := call != nil && s.state == StateAwaitingHost
	transport := s.transport
	s.resetLocked()
	s.mu.Unlock()

	s.teardown(transport)
	if abandoned {
		call.err = &HandshakeError{Type: HandshakeErrorTypeAbandoned}
		close(call.done)
	}
	s.logger.Debug("session uninitialized")
}

func (s *Session) resetLocked() {
	s.state = StateUninitialized
	s.init = nil
	s.transport = nil
	s.trust = nil
	s.frameContext = ""
	s.hostClientType = ""
	s.sdkVersion = ""
	s.runtime = nil
}

func (s *Session) teardown(transport bifaci.Transport) {
	s.correlator.Reset()
	s.correlator.Detach()
	if transport != nil {
		_ = transport.Close()
	}
}

// =========================================================================
// Accessors
// =========================================================================

// State returns the handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FrameContext returns the frame context reported by the host.
func (s *Session) FrameContext() standard.FrameContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameContext
}

// HostClientType returns the host client type reported by the host.
func (s *Session) HostClientType() standard.HostClientType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostClientType
}

// ClientSupportedSDKVersion returns the SDK version the host supports.
func (s *Session) ClientSupportedSDKVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sdkVersion
}

// Runtime returns a copy of the negotiated runtime, nil before Initialized.
func (s *Session) Runtime() *capability.Runtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime.Clone()
}

// IsFrameless reports whether the session talks through a native bridge.
func (s *Session) IsFrameless() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != nil {
		return !s.transport.Framed()
	}
	return s.env.NativeBridge != nil
}

// HostOrigin returns the validated host origin of a framed session.
func (s *Session) HostOrigin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return ""
	}
	return s.transport.TargetOrigin()
}

// TrustedOrigins lists the patterns of the current handshake's trust set.
func (s *Session) TrustedOrigins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trust.Patterns()
}

// IsTrustedOrigin reports whether origin is in the current trust set.
func (s *Session) IsTrustedOrigin(origin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trust.Contains(origin)
}
