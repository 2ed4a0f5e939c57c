// Package parallel runs independent named fetches concurrently and joins
// their results.
//
// [Fetch] is all-or-nothing: either every fetch succeeds and the caller gets
// a map holding each result under its name, or the first failure cancels the
// shared context and is returned alone.
//
//	res, err := parallel.Fetch(ctx, map[string]func(context.Context) (any, error){
//	    "classes":  func(ctx context.Context) (any, error) { return api.Classes(ctx) },
//	    "teachers": func(ctx context.Context) (any, error) { return api.Teachers(ctx) },
//	})
package parallel

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
)

// Option configures Fetch.
type Option func(*config)

type config struct {
	limit int
}

// WithLimit bounds the number of fetches running at once. n <= 0 means no
// limit.
func WithLimit(n int) Option {
	return func(c *config) { c.limit = n }
}

// Fetch calls every function in fetches concurrently and returns their
// results under the same keys. If any function fails, the context passed to
// the others is cancelled and Fetch returns the first error unchanged with a
// nil map.
func Fetch[K comparable, V any](ctx context.Context, fetches map[K]func(context.Context) (V, error), opts ...Option) (map[K]V, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	for k, fn := range fetches {
		if fn == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "nil fetch function for %v", k)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.limit > 0 {
		g.SetLimit(cfg.limit)
	}

	var mu sync.Mutex
	results := make(map[K]V, len(fetches))
	for k, fn := range fetches {
		g.Go(func() error {
			v, err := fn(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			results[k] = v
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
