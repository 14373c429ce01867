package session

import (
	"log/slog"
	"os"

	"github.com/machinefabric/hostbridge-go/bifaci"
	"github.com/machinefabric/hostbridge-go/origins"
)

// DefaultLibraryVersion is sent in the handshake unless overridden.
const DefaultLibraryVersion = "2.30.0"

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDiagnosticLogging turns on debug logging to stderr when no logger has
// been set.
func WithDiagnosticLogging(enabled bool) Option {
	return func(s *Session) {
		s.diagnostic = enabled
	}
}

// WithWindow sets the page window used by the framed transport.
func WithWindow(w bifaci.Window) Option {
	return func(s *Session) {
		s.env.Window = w
	}
}

// WithNativeBridge makes the session frameless.
func WithNativeBridge(b bifaci.NativeBridge) Option {
	return func(s *Session) {
		s.env.NativeBridge = b
	}
}

// WithLibraryVersion overrides the version reported to the host.
func WithLibraryVersion(v string) Option {
	return func(s *Session) {
		s.libraryVersion = v
	}
}

// WithValidOrigins adds trusted origin patterns for every handshake.
func WithValidOrigins(patterns ...string) Option {
	return func(s *Session) {
		s.extraOrigins = append(s.extraOrigins, patterns...)
	}
}

// WithOriginResolver sets a resolver consulted once per handshake.
func WithOriginResolver(r origins.Resolver) Option {
	return func(s *Session) {
		s.resolver = r
	}
}

func diagnosticLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
