package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "cache-first", false)
	c.OnCacheMiss(ctx, "network-first")
	c.OnCacheDedup(ctx)
	c.OnCacheSet(ctx, time.Millisecond)
	c.OnRevalidateError(ctx, "students", errors.New("offline"))

	// Retry hooks
	r := NoopRetryHooks{}
	r.OnRetry(ctx, 1, 100*time.Millisecond, errors.New("reset"))
	r.OnGiveUp(ctx, 4, errors.New("reset"))

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "db.example.co", "/rest/v1/students")
	h.OnResponse(ctx, "GET", "db.example.co", "/rest/v1/students", 200, time.Second)
	h.OnError(ctx, "GET", "db.example.co", "/rest/v1/students", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := Retry().(NoopRetryHooks); !ok {
		t.Error("Retry() should return NoopRetryHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customRetry := &testRetryHooks{}
	SetRetryHooks(customRetry)
	if Retry() != customRetry {
		t.Error("SetRetryHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Reset() should restore NoopCacheHooks")
	}
	if _, ok := Retry().(NoopRetryHooks); !ok {
		t.Error("Reset() should restore NoopRetryHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testRetryHooks{}
	SetRetryHooks(custom)

	// Setting nil should be ignored
	SetRetryHooks(nil)

	if Retry() != custom {
		t.Error("SetRetryHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testCacheHooks struct{ NoopCacheHooks }
type testRetryHooks struct{ NoopRetryHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
