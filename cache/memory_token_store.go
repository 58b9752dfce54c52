package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const memoryTokenKey = "token"

// MemoryTokenStore implements TokenStore using ttlcache. Nothing survives
// the process; it backs tests and one-shot runs.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemoryTokenStore creates an in-memory token store. A positive ttl
// drops the token that long after Set; zero keeps it until Clear.
// No cleanup goroutine is started: expired items are skipped on Get.
func NewMemoryTokenStore(ttl time.Duration) *MemoryTokenStore {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	return &MemoryTokenStore{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context) (string, bool, error) {
	item := s.cache.Get(memoryTokenKey)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, token string) error {
	s.cache.Set(memoryTokenKey, token, ttlcache.DefaultTTL)
	return nil
}

// Clear implements TokenStore.Clear.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.Delete(memoryTokenKey)
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
