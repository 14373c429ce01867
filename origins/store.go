package origins

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches resolved origin lists.
type Store interface {
	// GetOrigins returns the cached list under key; ok is false on a miss.
	GetOrigins(ctx context.Context, key string) (origins []string, ok bool, err error)
	// SetOrigins caches origins under key for ttl. A zero ttl never expires.
	SetOrigins(ctx context.Context, key string, origins []string, ttl time.Duration) error
}

type memoryEntry struct {
	origins  []string
	expireAt time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) GetOrigins(_ context.Context, key string) ([]string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expireAt.IsZero() && !m.now().Before(entry.expireAt) {
		return nil, false, nil
	}
	return append([]string(nil), entry.origins...), true, nil
}

func (m *MemoryStore) SetOrigins(_ context.Context, key string, origins []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{origins: append([]string(nil), origins...)}
	if ttl > 0 {
		entry.expireAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// RedisStore keeps origin lists as Redis sets.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// GetOrigins reads the set under key. An empty or missing set is a miss.
func (r *RedisStore) GetOrigins(ctx context.Context, key string) ([]string, bool, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	return members, true, nil
}

// SetOrigins replaces the set under key in one transaction.
func (r *RedisStore) SetOrigins(ctx context.Context, key string, origins []string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(origins) == 0 {
			return nil
		}
		members := make([]interface{}, len(origins))
		for i, o := range origins {
			members[i] = o
		}
		pipe.SAdd(ctx, key, members...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
