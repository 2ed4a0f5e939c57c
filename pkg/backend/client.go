package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/buildinfo"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/retry"
)

const (
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries the per-request id to the backend logs.
	RequestIDHeader = "X-Request-Id"

	restPath     = "/rest/v1/"
	maxBodyBytes = 32 << 20
)

// Config configures a Client.
type Config struct {
	URL     string        // Project URL, e.g. https://xyz.supabase.co
	APIKey  string        // Sent as apikey and bearer token
	Timeout time.Duration // 0 means DefaultTimeout
	Retry   retry.Options // Used by QueryWithRetry and Select
	Logger  *log.Logger
}

// Client queries the backend REST API. It is safe for concurrent use.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
	retry  retry.Options
	logger *log.Logger
}

// NewClient creates a Client for cfg.URL.
func NewClient(cfg Config) (*Client, error) {
	if err := errors.ValidateURL(cfg.URL); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = cfg.Logger
	}
	return &Client{
		base:   strings.TrimSuffix(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.Timeout},
		retry:  cfg.Retry,
		logger: cfg.Logger,
	}, nil
}

// Query fetches rows of table filtered by query (PostgREST syntax, e.g.
// class_id=eq.6A&order=last_name).
//
// The outcome follows the {data, error} convention: a 2xx response puts the
// raw JSON body in Data; any other response the backend answered puts a
// *errors.BackendError in Err. Only failures to complete the exchange
// (network errors, invalid table names) are returned as the Go error.
// Network errors are marked retryable.
func (c *Client) Query(ctx context.Context, table string, query url.Values) (retry.Result[json.RawMessage], error) {
	var res retry.Result[json.RawMessage]
	if err := errors.ValidateTable(table); err != nil {
		return res, err
	}

	endpoint := c.base + restPath + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return res, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", table)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set(RequestIDHeader, requestID)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, errors.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "query %s", table))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, elapsed)
	if err != nil {
		return res, errors.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read %s response", table))
	}

	c.logger.Debug("backend query", "table", table, "status", resp.StatusCode, "elapsed", elapsed, "request_id", requestID)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(body) == 0 {
			body = []byte("null")
		}
		res.Data = body
		return res, nil
	}
	res.Err = decodeBackendError(resp.StatusCode, body)
	return res, nil
}

// QueryWithRetry is Query wrapped in retry.DoResult with the client's retry
// options.
func (c *Client) QueryWithRetry(ctx context.Context, table string, query url.Values) (retry.Result[json.RawMessage], error) {
	return retry.DoResult(ctx, c.retry, func(ctx context.Context) (retry.Result[json.RawMessage], error) {
		return c.Query(ctx, table, query)
	})
}

func decodeBackendError(status int, body []byte) *errors.BackendError {
	be := &errors.BackendError{}
	if err := json.Unmarshal(body, be); err != nil || be.Message == "" {
		be = &errors.BackendError{Message: strings.TrimSpace(string(body))}
		if be.Message == "" {
			be.Message = http.StatusText(status)
		}
	}
	be.Status = status
	return be
}
