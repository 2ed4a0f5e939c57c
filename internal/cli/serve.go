package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/backend"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability/prom"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/ratelimit"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/reqcache"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/ttlstore"
)

// StrategyHeader lets gateway clients choose the cache strategy per request.
const StrategyHeader = "X-Cache-Strategy"

const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a read-through HTTP gateway in front of the backend",
		Long: `Run an HTTP gateway that answers table reads through the request cache.

Endpoints:
  GET  /api/{table}             rows of table; query parameters are passed through
  POST /api/{table}/invalidate  drop every cached query of table
  GET  /debug/cache             request cache and rate-limit store statistics
  GET  /metrics                 Prometheus metrics
  GET  /healthz                 liveness check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}
	client, err := c.newClient(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom.New(appName, reg).Register()
	defer observability.Reset()

	var limits ratelimit.Markers
	if cfg.Server.RedisURL != "" {
		r, err := ratelimit.NewRedis(ctx, ratelimit.RedisConfig{URL: cfg.Server.RedisURL})
		if err != nil {
			return err
		}
		defer r.Close()
		limits = r
		logger.Info("Sharing rate-limit markers through Redis")
	} else {
		limits = ratelimit.NewMemory(cfg.StoreConfig(logger))
	}

	gw := &gateway{
		client:  client,
		cache:   reqcache.New(cfg.CacheOptions(logger)),
		limits:  limits,
		backoff: cfg.Server.RateLimitBackoff.Duration,
		logger:  logger,
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           gw.routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening", "addr", addr, "backend", cfg.Backend.URL)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	gw.cache.Wait()
	return nil
}

// =============================================================================
// Gateway
// =============================================================================

// gateway serves table reads through one shared request cache. Tables the
// backend has throttled are marked and answered with 429 until the marker
// expires, without calling the backend.
type gateway struct {
	client  *backend.Client
	cache   *reqcache.Cache
	limits  ratelimit.Markers
	backoff time.Duration
	logger  *log.Logger
}

func (g *gateway) routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(g.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/debug/cache", g.handleDebugCache)
	r.Get("/api/{table}", g.handleSelect)
	r.Post("/api/{table}/invalidate", g.handleInvalidate)
	return r
}

func (g *gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		g.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (g *gateway) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := errors.ValidateTable(table); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	until, limited, err := g.limits.Until(r.Context(), table)
	if err != nil {
		g.logger.Warn("Rate-limit lookup failed", "table", table, "err", err)
	} else if limited {
		g.writeRateLimited(w, table, until)
		return
	}

	var opts []reqcache.CallOption
	if h := r.Header.Get(StrategyHeader); h != "" {
		s, err := reqcache.ParseStrategy(h)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		opts = append(opts, reqcache.WithStrategy(s))
	}

	rows, err := backend.Select[json.RawMessage](r.Context(), g.client, g.cache, table, r.URL.Query(), opts...)
	if err != nil {
		var be *errors.BackendError
		if stderrors.As(err, &be) && be.Status == http.StatusTooManyRequests {
			until := time.Now().Add(g.backoff)
			if err := g.limits.Mark(r.Context(), table, until); err != nil {
				g.logger.Warn("Rate-limit marker not stored", "table", table, "err", err)
			}
			g.logger.Warn("Backend throttled table", "table", table, "backoff", g.backoff)
			g.writeRateLimited(w, table, until)
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (g *gateway) writeRateLimited(w http.ResponseWriter, table string, until time.Time) {
	retryAfter := max(int(time.Until(until).Round(time.Second).Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeError(w, http.StatusTooManyRequests, &errors.RateLimitedError{
		RetryAfter: retryAfter,
		Message:    "backend is throttling " + table + ", retry " + humanize.Time(until),
	})
}

func (g *gateway) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if err := errors.ValidateTable(table); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n := backend.Invalidate(g.cache, table)
	if err := g.limits.Clear(r.Context(), table); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	g.logger.Info("Invalidated table", "table", table, "entries", n)
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "invalidated": n})
}

// cacheReport is the body of GET /debug/cache. RateLimits is only present
// when markers are kept in memory.
type cacheReport struct {
	RequestCache reqcache.Stats  `json:"request_cache"`
	RateLimits   *ttlstore.Stats `json:"rate_limits,omitempty"`
}

func (g *gateway) handleDebugCache(w http.ResponseWriter, r *http.Request) {
	report := cacheReport{RequestCache: g.cache.Stats()}
	if m, ok := g.limits.(*ratelimit.Memory); ok {
		stats := m.Stats()
		report.RateLimits = &stats
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// Responses
// =============================================================================

// errorBody is the JSON shape of every gateway error.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusFor maps an error to the HTTP status returned by the gateway.
func statusFor(err error) int {
	var be *errors.BackendError
	if stderrors.As(err, &be) && be.Status >= 400 {
		return be.Status
	}
	var rl *errors.RateLimitedError
	if stderrors.As(err, &rl) {
		return http.StatusTooManyRequests
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidKey, errors.ErrCodeInvalidTable:
		return http.StatusBadRequest
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, status int, err error) {
	var body errorBody
	body.Error.Code = string(errors.GetCode(err))
	var be *errors.BackendError
	var rl *errors.RateLimitedError
	switch {
	case stderrors.As(err, &be):
		body.Error.Code = string(errors.ErrCodeBackend)
		if be.Code != "" {
			body.Error.Code = be.Code
		}
	case stderrors.As(err, &rl):
		body.Error.Code = string(rl.Code())
	case body.Error.Code == "":
		body.Error.Code = string(errors.ErrCodeInternal)
	}
	body.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
