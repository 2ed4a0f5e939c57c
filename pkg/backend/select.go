package backend

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/reqcache"
)

// TablePrefix returns the cache key prefix shared by every query of table.
func TablePrefix(table string) string {
	return reqcache.Scoped(table).Prefix()
}

// QueryKey returns the cache key for a query of table. Equal queries map to
// equal keys whatever the order their parameters were added in.
func QueryKey(table string, query url.Values) string {
	return reqcache.Scoped(table).HashKey(query.Encode())
}

// Select returns the rows of table matching query, decoded into []T.
//
// It is the composed read path: the request cache deduplicates and caches
// per query, backend calls are retried on transient failures, and a backend
// error left after retries is returned as the error.
func Select[T any](ctx context.Context, c *Client, cache *reqcache.Cache, table string, query url.Values, opts ...reqcache.CallOption) ([]T, error) {
	if err := errors.ValidateTable(table); err != nil {
		return nil, err
	}
	return reqcache.Get(ctx, cache, QueryKey(table, query), func(ctx context.Context) ([]T, error) {
		res, err := c.QueryWithRetry(ctx, table, query)
		if err != nil {
			return nil, err
		}
		if res.Err != nil {
			return nil, res.Err
		}
		var rows []T
		if err := json.Unmarshal(res.Data, &rows); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBackend, err, "decode %s rows", table)
		}
		if rows == nil {
			rows = []T{}
		}
		return rows, nil
	}, opts...)
}

// Invalidate drops every cached query of table, typically after a write.
// It returns the number of entries removed.
func Invalidate(cache *reqcache.Cache, table string) int {
	return cache.InvalidateByPrefix(TablePrefix(table))
}
