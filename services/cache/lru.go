package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUService implements CacheService in process. Entries expire after their
// own expiration or maxTTL, whichever comes first.
type LRUService struct {
	cache *expirable.LRU[string, lruEntry]
	now   func() time.Time
}

// NewLRUService creates an in-process cache holding at most size keys
func NewLRUService(size int, maxTTL time.Duration) *LRUService {
	return &LRUService{
		cache: expirable.NewLRU[string, lruEntry](size, nil, maxTTL),
		now:   time.Now,
	}
}

// Get retrieves a value that has not expired
func (l *LRUService) Get(key string) ([]byte, error) {
	entry, ok := l.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !l.now().Before(entry.expiresAt) {
		l.cache.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value; a non-positive expiration keeps it until maxTTL
func (l *LRUService) Set(key string, value []byte, expiration time.Duration) error {
	entry := lruEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = l.now().Add(expiration)
	}
	l.cache.Add(key, entry)
	return nil
}
