package session

import (
	"fmt"
	"slices"

	"github.com/machinefabric/hostbridge-go/bifaci"
	"github.com/machinefabric/hostbridge-go/capability"
	"github.com/machinefabric/hostbridge-go/standard"
)

// EnsureInitialized checks that the handshake has completed and, when allowed
// is non-empty, that the current frame context is one of allowed.
func (s *Session) EnsureInitialized(allowed ...standard.FrameContext) error {
	s.mu.Lock()
	state, current := s.state, s.frameContext
	s.mu.Unlock()

	if state != StateInitialized {
		return ErrLibraryNotInitialized
	}
	if len(allowed) > 0 && !slices.Contains(allowed, current) {
		return &InvalidContextError{Allowed: slices.Clone(allowed), Current: current}
	}
	return nil
}

// IsSupported reports whether path is present in the negotiated capability
// tree.
func (s *Session) IsSupported(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitialized {
		return false, ErrLibraryNotInitialized
	}
	return s.runtime.IsSupported(path), nil
}

// EnsureSupported returns a NOT_SUPPORTED_ON_PLATFORM error when path is not
// supported by the host.
func (s *Session) EnsureSupported(path string) error {
	ok, err := s.IsSupported(path)
	if err != nil {
		return err
	}
	if !ok {
		return bifaci.NewSdkError(bifaci.ErrorCodeNotSupportedOnPlatform, fmt.Sprintf("%s is not supported by this host", path))
	}
	return nil
}

// EnsureMinSDKVersion returns an OLD_PLATFORM error when the host supports an
// SDK version lower than minVersion.
func (s *Session) EnsureMinSDKVersion(minVersion string) error {
	s.mu.Lock()
	state, have := s.state, s.sdkVersion
	s.mu.Unlock()

	if state != StateInitialized {
		return ErrLibraryNotInitialized
	}
	if !capability.IsVersionAtLeast(have, minVersion) {
		return bifaci.NewSdkError(bifaci.ErrorCodeOldPlatform, fmt.Sprintf("host SDK version %s is older than %s", have, minVersion))
	}
	return nil
}
