// Package backend is the client for the managed REST backend that holds the
// school data (students, classes, grades, payments).
//
// # Overview
//
// The backend exposes tables over a PostgREST-style API:
//
//	GET {url}/rest/v1/{table}?class_id=eq.6A&order=last_name
//
// [Client.Query] performs one such request and answers with a
// retry.Result pair: rows in Data, or the backend's own error object in Err.
// Only a failed exchange is a Go error.
//
// # Read path
//
// [Select] composes the data layer the way application code uses it:
//
//	students, err := backend.Select[Student](ctx, client, cache, "students",
//	    url.Values{"class_id": {"eq.6A"}},
//	    reqcache.WithStrategy(reqcache.CacheFirst))
//
// Keys are built per table with [QueryKey], so [Invalidate] can drop every
// cached query of a table after a write.
//
// # Requests
//
// Every request carries the API key (apikey and Authorization headers), a
// User-Agent from buildinfo and a fresh X-Request-Id. Request events are
// reported to observability.HTTPHooks.
package backend
