package cache

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"campovivo/landworker/logger"
)

// MemcacheService implements CacheService on memcache. The worker stores its
// per-site rate-limit block keys here so a block survives across sweeps and is
// shared by the plain-HTTP and browser fetch paths.
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a service talking to the given memcached address.
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
		log:    logger.ForCache(),
	}
}

// Get retrieves a value. A miss returns memcache.ErrCacheMiss, which callers
// treat as "no block in place".
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value with an expiration. Memcache takes whole seconds; the
// block times used here are all multiples of a second anyway.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.log.Debug().
		Str("key", key).
		Dur("expiration", expiration).
		Msg("Setting cache key")
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value, lifting a block early.
func (m *MemcacheService) Delete(key string) error {
	m.log.Debug().Str("key", key).Msg("Deleting cache key")
	return m.client.Delete(key)
}
