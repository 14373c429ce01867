// Package origins decides which host origins a session trusts: a fixed set of
// host patterns, optionally extended by a list resolved once per handshake.
package origins

import (
	"net/url"
	"sort"
	"strings"
)

// TrustSet is an immutable set of trusted host patterns. A pattern is a host,
// optionally with a port. A leading "*." matches exactly one extra label.
type TrustSet struct {
	exact    map[string]struct{}
	wildcard []string // suffixes including the leading dot
}

// NewTrustSet builds a set from patterns. Patterns may carry an https://
// scheme and trailing slash; both are stripped. Empty patterns are ignored.
func NewTrustSet(patterns ...[]string) *TrustSet {
	ts := &TrustSet{exact: make(map[string]struct{})}
	seen := make(map[string]struct{})
	for _, list := range patterns {
		for _, p := range list {
			p = normalizePattern(p)
			if p == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			if strings.HasPrefix(p, "*.") {
				ts.wildcard = append(ts.wildcard, p[1:])
				continue
			}
			ts.exact[p] = struct{}{}
		}
	}
	sort.Strings(ts.wildcard)
	return ts
}

func normalizePattern(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "https://")
	return strings.TrimSuffix(p, "/")
}

// Contains reports whether origin is trusted. The origin must be an https URL
// whose host (with port, if any) matches a pattern.
func (ts *TrustSet) Contains(origin string) bool {
	if ts == nil || origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	if _, ok := ts.exact[host]; ok {
		return true
	}
	labels := strings.Count(host, ".")
	for _, suffix := range ts.wildcard {
		// "*.teams.microsoft.com" matches "x.teams.microsoft.com" but not
		// "a.b.teams.microsoft.com".
		if len(host) > len(suffix) && strings.HasSuffix(host, suffix) && labels == strings.Count(suffix, ".") {
			return true
		}
	}
	return false
}

// Patterns returns every pattern in the set, sorted.
func (ts *TrustSet) Patterns() []string {
	if ts == nil {
		return nil
	}
	out := make([]string, 0, len(ts.exact)+len(ts.wildcard))
	for p := range ts.exact {
		out = append(out, p)
	}
	for _, suffix := range ts.wildcard {
		out = append(out, "*"+suffix)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of patterns.
func (ts *TrustSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.exact) + len(ts.wildcard)
}
