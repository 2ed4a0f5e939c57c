package backend

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/reqcache"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/retry"
)

type student struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	ClassID   string `json:"class_id"`
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		URL:    url,
		APIKey: "anon-key",
		Retry:  retry.Options{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Logger: log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(Config{URL: ""}); err == nil {
		t.Error("empty URL should fail")
	}
	if _, err := NewClient(Config{URL: "ftp://example.com"}); err == nil {
		t.Error("non-http URL should fail")
	}

	c, err := NewClient(Config{URL: "https://school.example.com/"})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if c.base != "https://school.example.com" {
		t.Errorf("base = %q, trailing slash should be trimmed", c.base)
	}
	if c.http.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, DefaultTimeout)
	}
}

func TestQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/students" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("class_id"); got != "eq.6A" {
			t.Errorf("class_id = %q", got)
		}
		if r.Header.Get("apikey") != "anon-key" || r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if _, err := uuid.Parse(r.Header.Get(RequestIDHeader)); err != nil {
			t.Errorf("request id should be a UUID: %v", err)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "ecogest/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`[{"id":1,"first_name":"Awa","class_id":"6A"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	res, err := c.Query(context.Background(), "students", url.Values{"class_id": {"eq.6A"}})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("Query() backend error: %v", res.Err)
	}
	if string(res.Data) != `[{"id":1,"first_name":"Awa","class_id":"6A"}]` {
		t.Errorf("Data = %s", res.Data)
	}
}

func TestQueryBackendError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantMsg   string
		transient bool
	}{
		{"no rows", http.StatusNotAcceptable, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned","details":null,"hint":null}`, "PGRST116", "JSON object requested, multiple (or no) rows returned", false},
		{"constraint", http.StatusConflict, `{"code":"23505","message":"duplicate key value"}`, "23505", "duplicate key value", false},
		{"pool timeout", http.StatusGatewayTimeout, `{"code":"PGRST003","message":"Timed out acquiring connection"}`, "PGRST003", "Timed out acquiring connection", true},
		{"plain text", http.StatusBadGateway, "upstream down", "", "upstream down", true},
		{"empty body", http.StatusServiceUnavailable, "", "", "Service Unavailable", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			res, err := newTestClient(t, server.URL).Query(context.Background(), "grades", nil)
			if err != nil {
				t.Fatalf("Query() error = %v, backend errors belong in the result", err)
			}
			if res.Err == nil {
				t.Fatal("res.Err = nil")
			}
			if res.Err.Status != tt.status || res.Err.Code != tt.wantCode || res.Err.Message != tt.wantMsg {
				t.Errorf("res.Err = %+v", res.Err)
			}
			if res.Err.Transient() != tt.transient {
				t.Errorf("Transient() = %v, want %v", res.Err.Transient(), tt.transient)
			}
		})
	}
}

func TestQueryInvalidTable(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	for _, table := range []string{"", "../auth/users", "students?select=*"} {
		if _, err := c.Query(context.Background(), table, nil); !errors.Is(err, errors.ErrCodeInvalidTable) {
			t.Errorf("Query(%q) err = %v, want INVALID_TABLE", table, err)
		}
	}
}

func TestQueryNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestClient(t, server.URL).Query(context.Background(), "students", nil)
	if err == nil {
		t.Fatal("Query() against a closed server should fail")
	}
	if !errors.IsTransient(err) {
		t.Errorf("network error should be transient: %v", err)
	}
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("err = %v, want NETWORK_ERROR", err)
	}
}

func TestQueryCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL).Query(ctx, "students", nil)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestQueryWithRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code":"PGRST000","message":"Could not connect"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	res, err := newTestClient(t, server.URL).QueryWithRetry(context.Background(), "classes", nil)
	if err != nil || !res.OK() {
		t.Fatalf("QueryWithRetry() = %+v, %v", res, err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestQueryWithRetryNonTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"PGRST100","message":"failed to parse filter"}`))
	}))
	defer server.Close()

	res, err := newTestClient(t, server.URL).QueryWithRetry(context.Background(), "classes", url.Values{"id": {"zz.1"}})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if res.Err == nil || res.Err.Code != "PGRST100" {
		t.Errorf("res.Err = %v", res.Err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestSelect(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"id":1,"first_name":"Awa","class_id":"6A"},{"id":2,"first_name":"Moussa","class_id":"6A"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	cache := reqcache.New(reqcache.Options{Logger: log.New(io.Discard)})
	ctx := context.Background()
	query := url.Values{"class_id": {"eq.6A"}}

	want := []student{{1, "Awa", "6A"}, {2, "Moussa", "6A"}}
	for range 2 {
		got, err := Select[student](ctx, c, cache, "students", query, reqcache.WithStrategy(reqcache.CacheFirst))
		if err != nil {
			t.Fatalf("Select() error: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Select() = %+v, want %+v", got, want)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, second Select should be cached", n)
	}

	if n := Invalidate(cache, "students"); n != 1 {
		t.Errorf("Invalidate() = %d, want 1", n)
	}
	if _, err := Select[student](ctx, c, cache, "students", query, reqcache.WithStrategy(reqcache.CacheFirst)); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, Select after Invalidate should refetch", n)
	}
}

func TestSelectBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.studens\" does not exist"}`))
	}))
	defer server.Close()

	cache := reqcache.New(reqcache.Options{Logger: log.New(io.Discard)})
	_, err := Select[student](context.Background(), newTestClient(t, server.URL), cache, "studens", nil)

	var be *errors.BackendError
	if !stderrors.As(err, &be) || be.Code != "42P01" {
		t.Fatalf("err = %v, want backend error 42P01", err)
	}
	if s := cache.Stats(); s.Entries != 0 {
		t.Errorf("failed Select should not be cached: %+v", s)
	}
}

func TestSelectEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cache := reqcache.New(reqcache.Options{Logger: log.New(io.Discard)})
	rows, err := Select[student](context.Background(), newTestClient(t, server.URL), cache, "students", nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty slice", rows)
	}
}

func TestQueryKey(t *testing.T) {
	a := url.Values{}
	a.Add("class_id", "eq.6A")
	a.Add("order", "last_name")
	b := url.Values{}
	b.Add("order", "last_name")
	b.Add("class_id", "eq.6A")

	if QueryKey("students", a) != QueryKey("students", b) {
		t.Error("parameter order should not change the key")
	}
	if QueryKey("students", a) == QueryKey("teachers", a) {
		t.Error("tables should not share keys")
	}
	if !strings.HasPrefix(QueryKey("students", a), TablePrefix("students")) {
		t.Error("key should start with the table prefix")
	}
	if TablePrefix("students") != "students:" {
		t.Errorf("TablePrefix() = %q", TablePrefix("students"))
	}
}
