// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about cache lookups, background revalidation, retries and
// backend calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library free of any particular metrics backend
//   - Gives failures that nobody awaits (background revalidation) a place to land
//
// The prom subpackage provides a Prometheus implementation of every hook.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := prom.New("ecogest", prometheus.DefaultRegisterer)
//	    observability.SetCacheHooks(m)
//	    observability.SetRetryHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Cache().OnCacheMiss(ctx, "stale-while-revalidate")
//	observability.Retry().OnRetry(ctx, attempt, delay, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from the request cache.
type CacheHooks interface {
	// OnCacheHit records a lookup answered from a cached entry.
	OnCacheHit(ctx context.Context, strategy string, stale bool)

	// OnCacheMiss records a lookup that had to call the fetch function.
	OnCacheMiss(ctx context.Context, strategy string)

	// OnCacheDedup records a caller that joined an in-flight fetch.
	OnCacheDedup(ctx context.Context)

	// OnCacheSet records a completed fetch stored in the cache.
	OnCacheSet(ctx context.Context, duration time.Duration)

	// OnRevalidateError records a background refresh that failed.
	// Nobody awaits these fetches; this hook is their only outlet besides logs.
	OnRevalidateError(ctx context.Context, key string, err error)
}

// =============================================================================
// Retry Hooks
// =============================================================================

// RetryHooks receives events from the backoff retrier.
type RetryHooks interface {
	// OnRetry records a transient failure followed by a wait of delay.
	// attempt is the 1-based attempt that failed.
	OnRetry(ctx context.Context, attempt int, delay time.Duration, err error)

	// OnGiveUp records the final failure after attempts attempts.
	OnGiveUp(ctx context.Context, attempts int, err error)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from backend client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string, bool)         {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)              {}
func (NoopCacheHooks) OnCacheDedup(context.Context)                     {}
func (NoopCacheHooks) OnCacheSet(context.Context, time.Duration)        {}
func (NoopCacheHooks) OnRevalidateError(context.Context, string, error) {}

// NoopRetryHooks is a no-op implementation of RetryHooks.
type NoopRetryHooks struct{}

func (NoopRetryHooks) OnRetry(context.Context, int, time.Duration, error) {}
func (NoopRetryHooks) OnGiveUp(context.Context, int, error)               {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	cacheHooks CacheHooks = NoopCacheHooks{}
	retryHooks RetryHooks = NoopRetryHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetRetryHooks registers custom retry hooks.
// This should be called once at application startup before any retried call.
func SetRetryHooks(h RetryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		retryHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Retry returns the registered retry hooks.
func Retry() RetryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return retryHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	cacheHooks = NoopCacheHooks{}
	retryHooks = NoopRetryHooks{}
	httpHooks = NoopHTTPHooks{}
}
