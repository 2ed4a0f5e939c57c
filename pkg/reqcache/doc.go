// Package reqcache caches the results of backend fetches per key and makes
// sure at most one fetch per key is in flight.
//
// # Overview
//
// Application code hands [Get] a key and a fetch function. The cache decides
// whether to call the function now, in the background, or not at all, and
// returns a value:
//
//	classes, err := reqcache.Get(ctx, cache, "classes:school:42",
//	    func(ctx context.Context) ([]Class, error) {
//	        return api.ListClasses(ctx, 42)
//	    },
//	    reqcache.WithTTL(10*time.Minute),
//	)
//
// Each entry remembers only when it was written. Freshness is decided per
// lookup: an entry is fresh while less than that call's TTL has elapsed since
// the write, and stale afterwards, so readers with different tolerances can
// share one entry. Stale entries are kept: they serve as
// fallbacks and as instant answers while a refresh runs.
//
// # Strategies
//
// The strategy is chosen per call with [WithStrategy], defaulting to
// Options.DefaultStrategy:
//
//   - [CacheFirst]: a fresh entry is returned without fetching. Otherwise the
//     value is fetched, cached and returned, and a failure reaches the caller.
//   - [NetworkFirst]: the value is always fetched. If the fetch fails and any
//     entry exists, fresh or stale, that entry is returned instead.
//   - [StaleWhileRevalidate]: any entry is returned at once. A stale one also
//     starts a background refresh whose failure is logged and reported to
//     observability.CacheHooks.OnRevalidateError, never to the caller.
//     Without an entry the value is fetched synchronously.
//
// # Deduplication
//
// Before any strategy logic, Get checks whether a fetch for the key is
// already running. If so the caller joins it and receives exactly the same
// value or error as every other caller. The check, the strategy decision and
// the registration of a new fetch happen under one lock, so N concurrent
// callers of a missing key trigger a single fetch.
//
// Fetches run with a context detached from the caller's. A caller whose
// context ends stops waiting and gets ctx.Err(), while the fetch runs to
// completion for the others and is cached. [Cache.Wait] blocks until every
// running fetch has finished, which makes background refreshes observable in
// tests and lets servers drain on shutdown.
//
// # Invalidation
//
// [Cache.Invalidate], [Cache.InvalidateByPrefix] and [Cache.Clear] drop
// entries. A fetch running for a dropped key still answers its waiting
// callers, but its result is not written back. Build keys with [Key],
// [HashKey] or a [Keyer] so that related entries share a prefix:
//
//	school := reqcache.Scoped(reqcache.Key("school", id))
//	cache.InvalidateByPrefix(school.Prefix())
//
// # Types
//
// Values are stored untyped. [Get] asserts the stored value to T; reusing a
// key with a different T yields a TYPE_MISMATCH error rather than a panic.
package reqcache
