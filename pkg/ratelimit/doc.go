// Package ratelimit remembers which backend tables are throttled.
//
// When the backend answers 429 for a table, the gateway records a marker
// that expires after a backoff period. While the marker is live, requests
// for that table are refused locally instead of adding load to a backend
// that already asked for less of it.
//
// Two implementations of [Markers] are provided:
//   - [Memory]: a [ttlstore.Store] inside the process
//   - [Redis]: markers shared by every gateway replica using the same Redis
//
// [ttlstore.Store]: github.com/Benxalil/EcoGest-07-sub004/pkg/ttlstore.Store
package ratelimit
