// Package cache keeps recent extraction envelopes so repeated checks of the
// same post within a caller-chosen window skip the browser entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/postwatch/models"
)

// entry holds a cached envelope with its creation timestamp.
type entry struct {
	envelope  models.Envelope
	createdAt time.Time
}

// Cache is a simple in-memory envelope cache.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries envelopes. A background
// goroutine evicts entries older than ttl every ttl/12 until Close.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := newCache(maxEntries, ttl, time.Now)
	go c.cleanupLoop()
	return c
}

func newCache(maxEntries int, ttl time.Duration, now func() time.Time) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        now,
		stop:       make(chan struct{}),
	}
}

// Key generates a cache key from the platform and content URL.
func Key(platform, url string) string {
	h := sha256.New()
	h.Write([]byte(platform))
	h.Write([]byte("|"))
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// Cacheable reports whether env is a definitive answer worth reusing. Only
// live (200) and removed (404) envelopes qualify; everything else may change
// on the next attempt.
func Cacheable(env models.Envelope) bool {
	return env.Code == models.CodeSuccess || env.Code == models.CodeNotFound
}

// Get retrieves a cached envelope if it exists and is younger than maxAge.
// maxAge is in milliseconds. If maxAge <= 0, no cache lookup is performed.
func (c *Cache) Get(key string, maxAgeMs int) (models.Envelope, bool) {
	if maxAgeMs <= 0 {
		return models.Envelope{}, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return models.Envelope{}, false
	}

	age := c.now().Sub(e.createdAt)
	if age > time.Duration(maxAgeMs)*time.Millisecond || age > c.ttl {
		return models.Envelope{}, false
	}
	return e.envelope, true
}

// Set stores env when it is Cacheable. If the cache is at capacity, a random
// entry is evicted to make room.
func (c *Cache) Set(key string, env models.Envelope) {
	if !Cacheable(env) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		// Map iteration order is random.
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{envelope: env, createdAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl / 12)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
