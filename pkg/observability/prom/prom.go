// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/observability"
)

// Metrics holds all Prometheus metrics for the data layer.
// It implements [observability.CacheHooks], [observability.RetryHooks] and
// [observability.HTTPHooks].
type Metrics struct {
	// Request cache metrics
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheDeduplicated  prometheus.Counter
	FetchLatency       prometheus.Histogram
	RevalidateFailures prometheus.Counter

	// Retry metrics
	Retries      prometheus.Counter
	RetryDelay   prometheus.Histogram
	RetryGiveUps prometheus.Counter

	// Backend HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          prometheus.Counter
}

// New creates metrics under namespace and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Lookups answered from a cached entry",
		}, []string{"strategy", "stale"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Lookups that called the fetch function",
		}, []string{"strategy"}),
		CacheDeduplicated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "deduplicated_total",
			Help:      "Callers that joined an in-flight fetch",
		}),
		FetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetches stored in the cache",
			Buckets:   prometheus.DefBuckets,
		}),
		RevalidateFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "revalidate_failures_total",
			Help:      "Background revalidations that failed",
		}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Transient failures followed by another attempt",
		}),
		RetryDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "delay_seconds",
			Help:      "Backoff delays before a retry",
			Buckets:   []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2},
		}),
		RetryGiveUps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "give_ups_total",
			Help:      "Operations that failed after exhausting retries",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Backend requests by method and status",
		}, []string{"method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HTTPErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Backend requests that failed before a response",
		}),
	}
}

// Register installs m as the global cache, retry and HTTP hooks.
func (m *Metrics) Register() {
	observability.SetCacheHooks(m)
	observability.SetRetryHooks(m)
	observability.SetHTTPHooks(m)
}

func (m *Metrics) OnCacheHit(_ context.Context, strategy string, stale bool) {
	m.CacheHits.WithLabelValues(strategy, strconv.FormatBool(stale)).Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, strategy string) {
	m.CacheMisses.WithLabelValues(strategy).Inc()
}

func (m *Metrics) OnCacheDedup(context.Context) { m.CacheDeduplicated.Inc() }

func (m *Metrics) OnCacheSet(_ context.Context, d time.Duration) {
	m.FetchLatency.Observe(d.Seconds())
}

func (m *Metrics) OnRevalidateError(context.Context, string, error) { m.RevalidateFailures.Inc() }

func (m *Metrics) OnRetry(_ context.Context, _ int, delay time.Duration, _ error) {
	m.Retries.Inc()
	m.RetryDelay.Observe(delay.Seconds())
}

func (m *Metrics) OnGiveUp(context.Context, int, error) { m.RetryGiveUps.Inc() }

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, _, _ string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) OnError(context.Context, string, string, string, error) { m.HTTPErrors.Inc() }

var (
	_ observability.CacheHooks = (*Metrics)(nil)
	_ observability.RetryHooks = (*Metrics)(nil)
	_ observability.HTTPHooks  = (*Metrics)(nil)
)
