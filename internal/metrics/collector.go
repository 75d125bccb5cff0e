// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector holds every Prometheus series the gateway emits.
type Collector struct {
	// HTTP entry surface.
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Route classification and load balancing.
	routeDecisionsTotal *prometheus.CounterVec
	lbSelectionsTotal   *prometheus.CounterVec

	// Upstream provider calls.
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerRetriesTotal    *prometheus.CounterVec

	// Pipeline cache.
	pipelineCacheHits    *prometheus.CounterVec
	pipelineCacheMisses  *prometheus.CounterVec
	pipelineCacheEvicted *prometheus.CounterVec

	// OAuth refresh daemon.
	tokenRefreshTotal *prometheus.CounterVec
	tokenSuspended    *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector creates and registers the gateway's metrics.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of entry HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Entry HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	c.routeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Total number of classifier route decisions",
		},
		[]string{"route"},
	)

	c.lbSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lb_selections_total",
			Help:      "Total number of load balancer target selections",
		},
		[]string{"route", "provider", "model", "shortcut"},
	)

	c.providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of upstream provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	c.providerRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of upstream provider request retries",
		},
		[]string{"provider"},
	)

	c.pipelineCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_cache_hits_total",
			Help:      "Total number of pipeline instance cache hits",
		},
		[]string{},
	)

	c.pipelineCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_cache_misses_total",
			Help:      "Total number of pipeline instance cache misses",
		},
		[]string{},
	)

	c.pipelineCacheEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_cache_evicted_total",
			Help:      "Total number of pipeline instances evicted from the LRU cache",
		},
		[]string{},
	)

	c.tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Total number of OAuth token refresh attempts",
		},
		[]string{"provider", "mode", "result"},
	)

	c.tokenSuspended = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "token_auto_suspended",
			Help:      "1 if a token is currently auto-suspended, 0 otherwise",
		},
		[]string{"provider", "alias"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

func (c *Collector) RecordHTTPRequest(endpoint string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(endpoint, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (c *Collector) RecordRouteDecision(route string) {
	c.routeDecisionsTotal.WithLabelValues(route).Inc()
}

func (c *Collector) RecordLBSelection(route, provider, model string, shortcut bool) {
	c.lbSelectionsTotal.WithLabelValues(route, provider, model, boolLabel(shortcut)).Inc()
}

func (c *Collector) RecordProviderRequest(provider, model, status string, duration time.Duration) {
	c.providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.providerRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (c *Collector) RecordProviderRetry(provider string) {
	c.providerRetriesTotal.WithLabelValues(provider).Inc()
}

func (c *Collector) RecordPipelineCacheHit()    { c.pipelineCacheHits.WithLabelValues().Inc() }
func (c *Collector) RecordPipelineCacheMiss()   { c.pipelineCacheMisses.WithLabelValues().Inc() }
func (c *Collector) RecordPipelineCacheEvicted(n int) {
	c.pipelineCacheEvicted.WithLabelValues().Add(float64(n))
}

func (c *Collector) RecordTokenRefresh(provider, mode, result string) {
	c.tokenRefreshTotal.WithLabelValues(provider, mode, result).Inc()
}

func (c *Collector) SetTokenSuspended(provider, alias string, suspended bool) {
	v := 0.0
	if suspended {
		v = 1.0
	}
	c.tokenSuspended.WithLabelValues(provider, alias).Set(v)
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
