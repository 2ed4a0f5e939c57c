package reqcache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability"
)

// DefaultTTL is the entry lifetime used when neither Options nor the call
// sets one.
const DefaultTTL = 5 * time.Minute

// Options configures a Cache.
type Options struct {
	DefaultTTL      time.Duration            // 0 means DefaultTTL
	DefaultStrategy Strategy                 // "" means StaleWhileRevalidate
	Logger          *log.Logger              // nil means log.Default()
	Hooks           observability.CacheHooks // nil means the globally registered hooks
	Clock           func() time.Time         // nil means time.Now
}

// Stats is a point-in-time view of a Cache.
type Stats struct {
	Entries int      `json:"entries"`
	Pending int      `json:"pending"`
	Keys    []string `json:"keys"`
}

// CallOption overrides the cache defaults for a single lookup.
type CallOption func(*callOptions)

type callOptions struct {
	ttl      time.Duration
	strategy Strategy
}

// WithTTL sets the freshness window for this lookup: a cached value written
// less than d ago is fresh, older ones are stale. Entries do not remember the
// TTL they were written with.
func WithTTL(d time.Duration) CallOption {
	return func(o *callOptions) { o.ttl = d }
}

// WithStrategy selects the freshness strategy for this call.
func WithStrategy(s Strategy) CallOption {
	return func(o *callOptions) { o.strategy = s }
}

type fetchFunc func(context.Context) (any, error)

type entry struct {
	data    any
	written time.Time
}

func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Before(e.written.Add(ttl))
}

// flight is one fetch in progress. Every caller joined to it receives the
// same val and err once done is closed.
type flight struct {
	done chan struct{}
	val  any
	err  error
}

func (f *flight) wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cache caches fetch results per key. The zero value is not usable; create
// one with [New].
type Cache struct {
	defaultTTL      time.Duration
	defaultStrategy Strategy
	logger          *log.Logger
	hooks           observability.CacheHooks
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	flights map[string]*flight
	running sync.WaitGroup
}

// New creates an empty Cache.
func New(opts Options) *Cache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = StaleWhileRevalidate
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		defaultTTL:      opts.DefaultTTL,
		defaultStrategy: opts.DefaultStrategy,
		logger:          opts.Logger,
		hooks:           opts.Hooks,
		now:             opts.Clock,
		entries:         make(map[string]entry),
		flights:         make(map[string]*flight),
	}
}

func (c *Cache) cacheHooks() observability.CacheHooks {
	if c.hooks != nil {
		return c.hooks
	}
	return observability.Cache()
}

func (c *Cache) callOptions(opts []CallOption) (callOptions, error) {
	co := callOptions{ttl: c.defaultTTL, strategy: c.defaultStrategy}
	for _, opt := range opts {
		opt(&co)
	}
	if co.ttl <= 0 {
		co.ttl = c.defaultTTL
	}
	if !co.strategy.Valid() {
		return co, errors.New(errors.ErrCodeInvalidInput, "unknown cache strategy %q", co.strategy)
	}
	return co, nil
}

// Get returns the value for key, calling fetch when the strategy requires it.
//
// If a fetch for key is already running, Get waits for it and returns its
// outcome whatever the strategy and cache state. Otherwise it dispatches on
// the strategy (see [Strategy]). Fetches run detached from ctx: if ctx ends
// first, Get returns ctx.Err() and the fetch still completes and is cached.
//
// A value cached under key by a call with a different T is reported as a
// TYPE_MISMATCH error.
func Get[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error), opts ...CallOption) (T, error) {
	var zero T
	if fetch == nil {
		return zero, errors.New(errors.ErrCodeInvalidInput, "nil fetch function for key %q", key)
	}
	v, err := c.get(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		return v, err
	}, opts)
	if err != nil {
		return zero, err
	}
	return as[T](key, v)
}

func as[T any](key string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.New(errors.ErrCodeTypeMismatch, "cached value for %q is %T, not %T", key, v, zero)
	}
	return t, nil
}

func (c *Cache) get(ctx context.Context, key string, fetch fetchFunc, opts []CallOption) (any, error) {
	if err := errors.ValidateKey(key); err != nil {
		return nil, err
	}
	co, err := c.callOptions(opts)
	if err != nil {
		return nil, err
	}
	hooks := c.cacheHooks()

	c.mu.Lock()
	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		hooks.OnCacheDedup(ctx)
		return f.wait(ctx)
	}

	e, cached := c.entries[key]
	fresh := cached && e.fresh(c.now(), co.ttl)

	switch co.strategy {
	case CacheFirst:
		if fresh {
			c.mu.Unlock()
			hooks.OnCacheHit(ctx, co.strategy.String(), false)
			return e.data, nil
		}

	case StaleWhileRevalidate:
		if cached {
			if !fresh {
				c.startLocked(ctx, key, fetch, true)
			}
			c.mu.Unlock()
			hooks.OnCacheHit(ctx, co.strategy.String(), !fresh)
			return e.data, nil
		}

	case NetworkFirst:
		f := c.startLocked(ctx, key, fetch, false)
		c.mu.Unlock()
		hooks.OnCacheMiss(ctx, co.strategy.String())

		v, err := f.wait(ctx)
		if err == nil || ctx.Err() != nil {
			return v, err
		}
		c.mu.Lock()
		e, cached := c.entries[key]
		fresh := cached && e.fresh(c.now(), co.ttl)
		c.mu.Unlock()
		if !cached {
			return nil, err
		}
		c.logger.Debug("fetch failed, serving cached value", "key", key, "stale", !fresh, "err", err)
		hooks.OnCacheHit(ctx, co.strategy.String(), !fresh)
		return e.data, nil
	}

	f := c.startLocked(ctx, key, fetch, false)
	c.mu.Unlock()
	hooks.OnCacheMiss(ctx, co.strategy.String())
	return f.wait(ctx)
}

// startLocked registers a flight for key and runs fetch in its own goroutine.
// c.mu must be held.
func (c *Cache) startLocked(ctx context.Context, key string, fetch fetchFunc, background bool) *flight {
	f := &flight{done: make(chan struct{})}
	c.flights[key] = f
	c.running.Add(1)
	go c.run(context.WithoutCancel(ctx), key, f, fetch, background)
	return f
}

func (c *Cache) run(ctx context.Context, key string, f *flight, fetch fetchFunc, background bool) {
	defer c.running.Done()
	hooks := c.cacheHooks()
	start := time.Now()

	v, err := safeFetch(ctx, fetch)

	c.mu.Lock()
	// A flight dropped by Invalidate or Clear still answers its callers but
	// does not write back.
	if c.flights[key] == f {
		delete(c.flights, key)
		if err == nil {
			c.entries[key] = entry{data: v, written: c.now()}
		}
	}
	c.mu.Unlock()

	f.val, f.err = v, err
	close(f.done)

	if err == nil {
		hooks.OnCacheSet(ctx, time.Since(start))
		return
	}
	if background {
		c.logger.Warn("background refresh failed", "key", key, "err", err)
		hooks.OnRevalidateError(ctx, key, err)
	}
}

func safeFetch(ctx context.Context, fetch fetchFunc) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, "fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// Prefetch starts fetching key in the background unless key is already
// cached (fresh or stale) or being fetched. It returns without waiting.
// Failures are logged and reported to the revalidation hook.
func Prefetch[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error), opts ...CallOption) error {
	if fetch == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil fetch function for key %q", key)
	}
	if err := errors.ValidateKey(key); err != nil {
		return err
	}
	if _, err := c.callOptions(opts); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.flights[key]; ok {
		return nil
	}
	if _, ok := c.entries[key]; ok {
		return nil
	}
	c.startLocked(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		return v, err
	}, true)
	return nil
}

// Invalidate drops the entry for key. A fetch already running for key still
// answers the callers waiting on it, but its result is not cached.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	delete(c.flights, key)
}

// InvalidateByPrefix drops every entry whose key starts with prefix and
// returns how many entries were removed.
func (c *Cache) InvalidateByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	for key := range c.flights {
		if strings.HasPrefix(key, prefix) {
			delete(c.flights, key)
		}
	}
	if n > 0 {
		c.logger.Debug("invalidated cache entries", "prefix", prefix, "count", n)
	}
	return n
}

// Clear drops every entry and detaches every running fetch.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	clear(c.flights)
}

// Stats reports the number of entries, the number of fetches in flight and
// the sorted entry keys.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return Stats{Entries: len(c.entries), Pending: len(c.flights), Keys: keys}
}

// Wait blocks until every fetch started so far, including background
// refreshes and prefetches, has finished.
func (c *Cache) Wait() {
	c.running.Wait()
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%d entries, %d pending", s.Entries, s.Pending)
}
