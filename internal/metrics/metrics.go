// Package metrics exposes Prometheus counters for the console and the
// ingestion paths.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	measurements      *prometheus.CounterVec
	ingestRejected    *prometheus.CounterVec
	loginAttempts     *prometheus.CounterVec
	activityLogErrors prometheus.Counter
}

// NewCollector registers the console metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqpanel_http_requests_total",
			Help: "HTTP responses by route and status code",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aqpanel_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqpanel_measurements_stored_total",
			Help: "Measurements written to the store",
		}, []string{"status", "source"}),
		ingestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqpanel_ingest_rejected_total",
			Help: "Ingestion payloads dropped before storage",
		}, []string{"source", "reason"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aqpanel_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"status"}),
		activityLogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aqpanel_activity_log_errors_total",
			Help: "Audit entries that could not be written",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.measurements,
		c.ingestRejected,
		c.loginAttempts,
		c.activityLogErrors,
	)

	return c
}

// RecordHTTPRequest records one served request. route is the matched
// pattern, not the raw path.
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveMeasurement counts a stored reading. Device ids are caller supplied,
// so they stay out of the label set.
func (c *Collector) ObserveMeasurement(status, source string) {
	c.measurements.WithLabelValues(status, source).Inc()
}

func (c *Collector) RecordIngestRejected(source, reason string) {
	c.ingestRejected.WithLabelValues(source, reason).Inc()
}

func (c *Collector) RecordLogin(status string) {
	c.loginAttempts.WithLabelValues(status).Inc()
}

func (c *Collector) RecordActivityLogError() {
	c.activityLogErrors.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
