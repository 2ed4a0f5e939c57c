// Package retry retries fallible operations with exponential backoff.
//
// # Overview
//
// [Do] runs an operation, and when it fails with an error the classifier
// deems transient, waits and tries again. The wait starts at
// Options.InitialDelay and is multiplied by Options.BackoffMultiplier after
// every retry, capped at Options.MaxDelay. With the defaults the waits are
// 100ms, 200ms, 400ms, and the operation runs at most four times.
//
// Errors that are not transient are returned immediately. After the last
// attempt the final error is returned verbatim, so callers can still match it
// with errors.Is and errors.As.
//
// # Backend pairs
//
// Backend calls answer with a {data, error} pair. [DoResult] retries when the
// error half is transient and otherwise hands the pair back untouched: a
// "no rows" answer is a result, not a failure, and never triggers a retry.
//
// # Usage
//
//	students, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context) ([]Student, error) {
//	    return api.ListStudents(ctx, schoolID)
//	})
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	ecoerrors "github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability"
)

// Default backoff settings.
const (
	DefaultMaxRetries        = 3
	DefaultInitialDelay      = 100 * time.Millisecond
	DefaultMaxDelay          = 2 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Options configures a retried call. Zero fields take the defaults above;
// a negative MaxRetries disables retries.
type Options struct {
	MaxRetries        int              // Retries after the first attempt
	InitialDelay      time.Duration    // Wait before the first retry
	MaxDelay          time.Duration    // Cap for any single wait
	BackoffMultiplier float64          // Growth factor between waits
	Classifier        func(error) bool // Reports transient errors; defaults to errors.IsTransient
	Logger            *log.Logger      // Retry attempts are logged at debug level
}

// DefaultOptions returns 3 retries starting at 100ms, doubling, capped at 2s.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

func (o Options) withDefaults() Options {
	switch {
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	case o.MaxRetries == 0:
		o.MaxRetries = DefaultMaxRetries
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.BackoffMultiplier < 1 {
		o.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if o.Classifier == nil {
		o.Classifier = ecoerrors.IsTransient
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// next returns the wait that follows d.
func (o Options) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * o.BackoffMultiplier)
	if n > o.MaxDelay || n <= 0 {
		return o.MaxDelay
	}
	return n
}

// Delays returns the waits Do would perform if every attempt failed with a
// transient error: one per retry.
func Delays(opts Options) []time.Duration {
	o := opts.withDefaults()
	delays := make([]time.Duration, 0, o.MaxRetries)
	d := min(o.InitialDelay, o.MaxDelay)
	for range o.MaxRetries {
		delays = append(delays, d)
		d = o.next(d)
	}
	return delays
}

// Do executes fn until it succeeds, fails with a non-transient error, or
// MaxRetries retries have been spent. It returns the last error verbatim,
// or ctx.Err() if ctx ends during a wait.
func Do[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error)) (T, error) {
	o := opts.withDefaults()
	hooks := observability.Retry()
	attempts := o.MaxRetries + 1
	delay := min(o.InitialDelay, o.MaxDelay)

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !o.Classifier(err) {
			return v, err
		}
		if attempt >= attempts {
			hooks.OnGiveUp(ctx, attempt, err)
			o.Logger.Debug("giving up after transient failures", "attempts", attempt, "err", err)
			return v, err
		}

		hooks.OnRetry(ctx, attempt, delay, err)
		o.Logger.Debug("retrying after transient failure", "attempt", attempt, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = o.next(delay)
	}
}

// DoErr is Do for operations that only return an error.
func DoErr(ctx context.Context, opts Options, fn func(context.Context) error) error {
	_, err := Do(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// WithBackoff is a convenience wrapper around [Do] with [DefaultOptions].
func WithBackoff[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return Do(ctx, DefaultOptions(), fn)
}

// Result is a {data, error} pair as returned by the backend. Err is a result
// the backend chose to send (no rows, constraint violation, throttling), not
// a failure of the exchange itself.
type Result[T any] struct {
	Data T
	Err  *ecoerrors.BackendError
}

// OK reports whether the backend returned data without an error.
func (r Result[T]) OK() bool { return r.Err == nil }

// Unwrap collapses the pair into Go's (value, error) form.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		var zero T
		return zero, r.Err
	}
	return r.Data, nil
}

// DoResult retries a backend call returning a {data, error} pair.
//
// Go errors from fn (transport failures) are classified and retried exactly
// like [Do]. A pair whose Err is transient is retried too; once retries are
// spent that last pair is returned with a nil error. A pair whose Err is not
// transient is returned at once, unchanged, with a nil error.
func DoResult[T any](ctx context.Context, opts Options, fn func(context.Context) (Result[T], error)) (Result[T], error) {
	classify := opts.withDefaults().Classifier
	var last Result[T]

	res, err := Do(ctx, opts, func(ctx context.Context) (Result[T], error) {
		res, err := fn(ctx)
		if err != nil {
			return res, err
		}
		if res.Err != nil && classify(res.Err) {
			last = res
			return res, res.Err
		}
		return res, nil
	})
	if err != nil {
		var be *ecoerrors.BackendError
		if errors.As(err, &be) && last.Err != nil && be == last.Err {
			return last, nil
		}
		return Result[T]{}, err
	}
	return res, nil
}
