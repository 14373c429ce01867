package capability

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

func parseVersion(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(strings.TrimSpace(v))
	if err != nil {
		return nil, &RuntimeError{Type: RuntimeErrorTypeInvalidVersion, Details: v + ": " + err.Error()}
	}
	return parsed, nil
}

// CompareVersions compares two version strings by major, minor and patch.
// Missing components count as zero, so "2.0" equals "2.0.0".
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// IsVersionAtLeast reports whether have >= want. Unparseable versions never
// satisfy the check.
func IsVersionAtLeast(have, want string) bool {
	cmp, err := CompareVersions(have, want)
	return err == nil && cmp >= 0
}
