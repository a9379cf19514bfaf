// Package metrics exposes Prometheus counters for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of the collector used by middleware and handlers.
type Recorder interface {
	RecordRequest(method, route string, status int, elapsed time.Duration)
	RecordAuthRejection(reason string)
	RecordTokenIssued()
	RecordRateLimited()
}

type Collector struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	authRejections *prometheus.CounterVec
	tokensIssued   prometheus.Counter
	rateLimited    prometheus.Counter
}

// NewCollector registers the API metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconnector_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devconnector_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devconnector_auth_rejections_total",
			Help: "Requests rejected by the auth gate, by reason.",
		}, []string{"reason"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devconnector_tokens_issued_total",
			Help: "Access tokens issued on register or login.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devconnector_rate_limited_total",
			Help: "Requests answered with 429.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.authRejections,
		c.tokensIssued,
		c.rateLimited,
	)
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) RecordAuthRejection(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordTokenIssued() {
	c.tokensIssued.Inc()
}

func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuthRejection(string)                       {}
func (Nop) RecordTokenIssued()                               {}
func (Nop) RecordRateLimited()                               {}
