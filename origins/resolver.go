package origins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Resolver produces an additional list of trusted origin patterns. It is
// consulted once per handshake.
type Resolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// Static resolves to a fixed list.
type Static []string

func (s Static) Resolve(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Func adapts a function to a Resolver.
type Func func(ctx context.Context) ([]string, error)

func (f Func) Resolve(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// ResolveError reports a failed resolution.
type ResolveError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ResolveError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("resolve origins from %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("resolve origins from %s: %v", e.URL, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// maxDocumentSize bounds the origin document an HTTPResolver will read.
const maxDocumentSize = 1 << 20

// document is the JSON shape served by an origin list endpoint.
type document struct {
	ValidOrigins []string `json:"validOrigins"`
}

// HTTPResolver fetches {"validOrigins": [...]} from URL.
type HTTPResolver struct {
	URL    string
	Client *http.Client
}

// NewHTTPResolver creates a resolver with a client that times out after
// timeout. A zero timeout means no client-level limit.
func NewHTTPResolver(url string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (r *HTTPResolver) Resolve(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, &ResolveError{URL: r.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ResolveError{URL: r.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ResolveError{URL: r.URL, StatusCode: resp.StatusCode}
	}
	var doc document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, &ResolveError{URL: r.URL, Err: err}
	}
	return doc.ValidOrigins, nil
}

// CachedResolver serves a resolver's result from a Store until it expires.
type CachedResolver struct {
	Next   Resolver
	Store  Store
	Key    string
	TTL    time.Duration
	Logger *slog.Logger
}

// DefaultCacheKey is the Store key used when CachedResolver.Key is empty.
const DefaultCacheKey = "hostbridge:valid-origins"

// NewCachedResolver wraps next with a cache in store.
func NewCachedResolver(next Resolver, store Store, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	return &CachedResolver{Next: next, Store: store, Key: DefaultCacheKey, TTL: ttl, Logger: logger}
}

func (r *CachedResolver) Resolve(ctx context.Context) ([]string, error) {
	key := r.Key
	if key == "" {
		key = DefaultCacheKey
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cached, ok, err := r.Store.GetOrigins(ctx, key)
	if err != nil {
		logger.Warn("origin cache read failed", "key", key, "error", err)
	} else if ok {
		logger.Debug("origin cache hit", "key", key, "count", len(cached))
		return cached, nil
	}

	resolved, err := r.Next.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Store.SetOrigins(ctx, key, resolved, r.TTL); err != nil {
		logger.Warn("origin cache write failed", "key", key, "error", err)
	}
	return resolved, nil
}
