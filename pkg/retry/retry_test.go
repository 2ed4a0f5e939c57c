package retry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	ecoerrors "github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability"
)

var errReset = ecoerrors.Retryable(errors.New("connection reset"))

// fast keeps the real backoff shape while making waits negligible.
func fast(maxRetries int) Options {
	return Options{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestDelays(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []time.Duration
	}{
		{
			name: "defaults",
			opts: DefaultOptions(),
			want: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		},
		{
			name: "zero options take defaults",
			opts: Options{},
			want: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		},
		{
			name: "capped at max delay",
			opts: Options{MaxRetries: 7},
			want: []time.Duration{
				100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
				800 * time.Millisecond, 1600 * time.Millisecond, 2 * time.Second, 2 * time.Second,
			},
		},
		{
			name: "custom multiplier",
			opts: Options{MaxRetries: 3, InitialDelay: 10 * time.Millisecond, BackoffMultiplier: 3},
			want: []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 90 * time.Millisecond},
		},
		{
			name: "retries disabled",
			opts: Options{MaxRetries: -1},
			want: []time.Duration{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delays(tt.opts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Delays() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		v, err := Do(ctx, fast(3), func(context.Context) (int, error) {
			calls++
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Fatalf("Do() = %d, %v", v, err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("non-transient error stops immediately", func(t *testing.T) {
		calls := 0
		errDenied := ecoerrors.New(ecoerrors.ErrCodeForbidden, "denied")
		_, err := Do(ctx, fast(3), func(context.Context) (int, error) {
			calls++
			return 0, errDenied
		})
		if err != errDenied {
			t.Errorf("err = %v, want %v", err, errDenied)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("transient error then success", func(t *testing.T) {
		calls := 0
		v, err := Do(ctx, fast(3), func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errReset
			}
			return "ok", nil
		})
		if err != nil || v != "ok" {
			t.Fatalf("Do() = %q, %v", v, err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("gives up after max retries plus one attempts", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, fast(3), func(context.Context) (int, error) {
			calls++
			return 0, errReset
		})
		if err != errReset {
			t.Errorf("final error should be returned verbatim, got %v", err)
		}
		if calls != 4 {
			t.Errorf("calls = %d, want 4", calls)
		}
	})

	t.Run("retries disabled", func(t *testing.T) {
		calls := 0
		_, _ = Do(ctx, fast(-1), func(context.Context) (int, error) {
			calls++
			return 0, errReset
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("custom classifier", func(t *testing.T) {
		errBusy := errors.New("busy")
		opts := fast(2)
		opts.Classifier = func(err error) bool { return errors.Is(err, errBusy) }

		calls := 0
		_, err := Do(ctx, opts, func(context.Context) (int, error) {
			calls++
			return 0, errBusy
		})
		if !errors.Is(err, errBusy) || calls != 3 {
			t.Errorf("err = %v, calls = %d; want busy after 3 calls", err, calls)
		}
	})
}

func TestDoContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, DefaultOptions(), func(context.Context) (int, error) {
		calls++
		return 0, errReset
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{MaxRetries: 3, InitialDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, opts, func(context.Context) (int, error) { return 0, errReset })
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDoErr(t *testing.T) {
	calls := 0
	err := DoErr(context.Background(), fast(2), func(context.Context) error {
		calls++
		if calls == 1 {
			return errReset
		}
		return nil
	})
	if err != nil {
		t.Errorf("DoErr() = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoResult(t *testing.T) {
	ctx := context.Background()
	unavailable := &ecoerrors.BackendError{Status: 503, Code: "PGRST000", Message: "could not connect"}
	noRows := &ecoerrors.BackendError{Status: 406, Code: "PGRST116", Message: "no rows"}

	t.Run("data returned unchanged", func(t *testing.T) {
		calls := 0
		res, err := DoResult(ctx, fast(3), func(context.Context) (Result[[]string], error) {
			calls++
			return Result[[]string]{Data: []string{"6eme A"}}, nil
		})
		if err != nil || !res.OK() || res.Data[0] != "6eme A" {
			t.Fatalf("DoResult() = %+v, %v", res, err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("non-transient pair error is a result", func(t *testing.T) {
		calls := 0
		res, err := DoResult(ctx, fast(3), func(context.Context) (Result[int], error) {
			calls++
			return Result[int]{Err: noRows}, nil
		})
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
		if res.Err != noRows {
			t.Errorf("res.Err = %v, want %v", res.Err, noRows)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("transient pair error is retried", func(t *testing.T) {
		calls := 0
		res, err := DoResult(ctx, fast(3), func(context.Context) (Result[int], error) {
			calls++
			if calls < 3 {
				return Result[int]{Err: unavailable}, nil
			}
			return Result[int]{Data: 7}, nil
		})
		if err != nil || res.Data != 7 {
			t.Fatalf("DoResult() = %+v, %v", res, err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("exhausted transient pair returns last pair", func(t *testing.T) {
		calls := 0
		res, err := DoResult(ctx, fast(2), func(context.Context) (Result[int], error) {
			calls++
			return Result[int]{Err: unavailable}, nil
		})
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
		if res.Err != unavailable {
			t.Errorf("res.Err = %v, want %v", res.Err, unavailable)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("transport error stays a Go error", func(t *testing.T) {
		res, err := DoResult(ctx, fast(1), func(context.Context) (Result[int], error) {
			return Result[int]{}, errReset
		})
		if err != errReset {
			t.Errorf("err = %v, want %v", err, errReset)
		}
		if !res.OK() {
			t.Errorf("res should be empty, got %+v", res)
		}
	})
}

func TestResultUnwrap(t *testing.T) {
	v, err := Result[int]{Data: 3}.Unwrap()
	if v != 3 || err != nil {
		t.Errorf("Unwrap() = %d, %v", v, err)
	}

	be := &ecoerrors.BackendError{Status: 400, Message: "bad filter"}
	v, err = Result[int]{Data: 3, Err: be}.Unwrap()
	if v != 0 || err == nil {
		t.Errorf("Unwrap() = %d, %v; want 0 and an error", v, err)
	}
	var got *ecoerrors.BackendError
	if !errors.As(err, &got) || got != be {
		t.Errorf("Unwrap() error should be the backend error, got %v", err)
	}
}

type recordingHooks struct {
	observability.NoopRetryHooks
	mu      sync.Mutex
	delays  []time.Duration
	giveUps []int
}

func (h *recordingHooks) OnRetry(_ context.Context, _ int, delay time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delays = append(h.delays, delay)
}

func (h *recordingHooks) OnGiveUp(_ context.Context, attempts int, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.giveUps = append(h.giveUps, attempts)
}

func TestDoEmitsHooks(t *testing.T) {
	defer observability.Reset()
	h := &recordingHooks{}
	observability.SetRetryHooks(h)

	_, _ = Do(context.Background(), fast(3), func(context.Context) (int, error) {
		return 0, errReset
	})

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if !reflect.DeepEqual(h.delays, want) {
		t.Errorf("retry delays = %v, want %v", h.delays, want)
	}
	if !reflect.DeepEqual(h.giveUps, []int{4}) {
		t.Errorf("give ups = %v, want [4]", h.giveUps)
	}
}
