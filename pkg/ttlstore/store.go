// Package ttlstore provides a short-lived in-memory cache keyed by string,
// where every entry carries its own time-to-live.
//
// # Overview
//
// A [Store] is the ad-hoc cache application code reaches for when it needs to
// remember something for a little while: a rate-limit marker, a lookup table,
// a computed permission set. It is independent of the request cache and does
// not call anything on a miss.
//
// Entries are fresh while less than their TTL has elapsed since they were
// written. Reads never extend a TTL. An expired entry found by [Store.Get] is
// deleted on the spot and reported absent.
//
// # Capacity
//
// Expired entries are purged before every write. If the store is still full
// after that pass, the least recently used entry is evicted, so the store
// never grows past MaxEntries.
//
// # Concurrency
//
// All methods are safe for concurrent use.
package ttlstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jellydator/ttlcache/v3"
)

const (
	// DefaultMaxEntries is the capacity used when Config.MaxEntries is zero.
	DefaultMaxEntries = 100

	// DefaultTTL is the time-to-live used by Set and by SetWithTTL with ttl <= 0.
	DefaultTTL = 5 * time.Minute
)

// Config configures a Store.
type Config struct {
	MaxEntries int           // Capacity; 0 means DefaultMaxEntries
	DefaultTTL time.Duration // TTL for Set; 0 means DefaultTTL
	Logger     *log.Logger   // Optional; capacity evictions are logged at debug level
}

// Stats is a point-in-time view of a Store.
type Stats struct {
	Size      int      `json:"size"`
	Keys      []string `json:"keys"`
	Hits      uint64   `json:"hits"`
	Misses    uint64   `json:"misses"`
	Evictions uint64   `json:"evictions"`
}

// Store is a string-keyed cache with per-entry TTL.
type Store[V any] struct {
	// mu orders writes against the delete of an expired entry in Get.
	mu         sync.Mutex
	items      *ttlcache.Cache[string, V]
	maxEntries int
	defaultTTL time.Duration
	logger     *log.Logger
}

// New creates a Store. The zero Config gives a 100 entry store with a five
// minute default TTL.
func New[V any](cfg Config) *Store[V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	items := ttlcache.New[string, V](
		ttlcache.WithTTL[string, V](cfg.DefaultTTL),
		ttlcache.WithCapacity[string, V](uint64(cfg.MaxEntries)),
		ttlcache.WithDisableTouchOnHit[string, V](),
	)

	s := &Store[V]{
		items:      items,
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.DefaultTTL,
		logger:     cfg.Logger,
	}
	items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, V]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			s.logger.Debug("ttlstore evicted least recently used entry", "key", item.Key(), "max", s.maxEntries)
		}
	})
	return s
}

// Set stores data under key with the default TTL.
func (s *Store[V]) Set(key string, data V) {
	s.SetWithTTL(key, data, 0)
}

// SetWithTTL stores data under key, replacing any previous entry.
// A ttl <= 0 means the store's default TTL.
func (s *Store[V]) SetWithTTL(key string, data V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Expired entries go first so that capacity eviction only ever has to
	// choose among fresh ones.
	s.items.DeleteExpired()
	s.items.Set(key, data, ttl)
}

// Get returns the value stored under key if it is present and fresh.
// An expired entry is deleted and reported absent.
func (s *Store[V]) Get(key string) (V, bool) {
	if item := s.items.Get(key); item != nil {
		return item.Value(), true
	}
	// Get skips expired entries without removing them. Has is checked under
	// mu so that a concurrent SetWithTTL of key is never undone.
	s.mu.Lock()
	if !s.items.Has(key) {
		s.items.Delete(key)
	}
	s.mu.Unlock()
	var zero V
	return zero, false
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store[V]) Delete(key string) {
	s.items.Delete(key)
}

// DeleteByPrefix removes every key starting with prefix and returns how many
// were removed.
func (s *Store[V]) DeleteByPrefix(prefix string) int {
	n := 0
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
			n++
		}
	}
	return n
}

// Clear removes every entry. The store remains usable.
func (s *Store[V]) Clear() {
	s.items.DeleteAll()
}

// Stats reports the current size, the sorted key set and hit counters.
// It has no side effects.
func (s *Store[V]) Stats() Stats {
	keys := s.items.Keys()
	slices.Sort(keys)
	m := s.items.Metrics()
	return Stats{
		Size:      len(keys),
		Keys:      keys,
		Hits:      m.Hits,
		Misses:    m.Misses,
		Evictions: m.Evictions,
	}
}
