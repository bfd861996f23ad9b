package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. Each instance owns
// its registry so tests can build as many as they need. All methods accept a
// nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	issuesCreated    prometheus.Counter
	issuesCompleted  prometheus.Counter
	emails           *prometheus.CounterVec
	expiryRuns       *prometheus.CounterVec
	licensesNotified prometheus.Counter
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_tracker_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "issue_tracker_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_tracker_http_errors_total",
			Help: "Failed HTTP requests by error code.",
		}, []string{"method", "route", "code"}),
		issuesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_tracker_issues_created_total",
			Help: "Issues created.",
		}),
		issuesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_tracker_issues_completed_total",
			Help: "Issues transitioned to complete.",
		}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_tracker_emails_total",
			Help: "Notification emails by kind and outcome.",
		}, []string{"kind", "outcome"}),
		expiryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_tracker_license_expiry_runs_total",
			Help: "License expiry checks by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		licensesNotified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_tracker_licenses_notified_total",
			Help: "Licenses marked as notified by the expiry check.",
		}),
	}
	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.httpErrors,
		m.issuesCreated,
		m.issuesCompleted,
		m.emails,
		m.expiryRuns,
		m.licensesNotified,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest observes one served request. route should be the matched
// route pattern, not the raw path.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts a failed request by error code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, route, code).Inc()
}

// IssueCreated counts a created issue.
func (m *Metrics) IssueCreated() {
	if m == nil {
		return
	}
	m.issuesCreated.Inc()
}

// IssueCompleted counts a completed issue.
func (m *Metrics) IssueCompleted() {
	if m == nil {
		return
	}
	m.issuesCompleted.Inc()
}

// EmailSent counts one delivery attempt.
func (m *Metrics) EmailSent(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.emails.WithLabelValues(kind, outcome).Inc()
}

// ExpiryRun counts one expiry check.
func (m *Metrics) ExpiryRun(trigger string, err error, licensesMarked int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.expiryRuns.WithLabelValues(trigger, outcome).Inc()
	m.licensesNotified.Add(float64(licensesMarked))
}
