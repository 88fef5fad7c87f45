// Package metrics provides Prometheus metrics for the blog HTTP server.
package metrics

import (
	"strconv"
	"time"

	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blog"

// Collector holds the HTTP and domain collectors
type Collector struct {
	gatherer prometheus.Gatherer

	// RequestsTotal counts requests by method, route and status.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration measures handler duration.
	RequestDuration *prometheus.HistogramVec
	// LoginsTotal counts login attempts by outcome.
	LoginsTotal *prometheus.CounterVec
	// UploadBytes observes accepted upload sizes.
	UploadBytes prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a fresh registry
// so tests can build as many collectors as they need.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total number of login attempts",
			},
			[]string{"outcome"},
		),
		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_bytes",
				Help:      "Distribution of accepted upload sizes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
	}
}

// RecordRequest records a served request.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLogin records a login outcome, e.g. success, failure or limited.
func (c *Collector) RecordLogin(outcome string) {
	c.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload records the size of a stored upload.
func (c *Collector) RecordUpload(size int64) {
	c.UploadBytes.Observe(float64(size))
}

// Middleware records every request passing through the router. The
// route label uses the route name when set so path params do not
// explode cardinality.
func (c *Collector) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			start := time.Now()
			err := ctx.Next()

			route := ctx.RouteName()
			if route == "" {
				route = "unnamed"
			}

			status := router.StatusOK
			if state, ok := router.AsResponseState(ctx); ok && state.StatusCode() > 0 {
				status = state.StatusCode()
			}

			c.RecordRequest(ctx.Method(), route, status, time.Since(start))
			return err
		}
	}
}

// Handler exposes the registry in the Prometheus text format
func (c *Collector) Handler() router.HandlerFunc {
	return router.HandlerFromHTTP(promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))
}

// Gatherer returns the registry backing the collector
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}
