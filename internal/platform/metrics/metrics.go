package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the ad break coordinator.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	sessionsCreatedTotal  prometheus.Counter
	sessionsReleasedTotal prometheus.Counter
	activeSessions        prometheus.Gauge
	groupLoadErrorsTotal  prometheus.Counter
	internalErrorsTotal   prometheus.Counter
	errorsTotal           prometheus.Counter
}

// New creates and registers Prometheus metrics for the coordinator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ads_requests_total",
		Help: "Total number of HTTP requests received",
	})
	sessionsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ads_sessions_created_total",
		Help: "Total number of ad sessions created",
	})
	sessionsReleasedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ads_sessions_released_total",
		Help: "Total number of ad sessions released",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ads_active_sessions",
		Help: "Number of ad sessions currently live",
	})
	groupLoadErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ads_group_load_errors_total",
		Help: "Total number of ad break groups resolved as load errors",
	})
	internalErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ads_internal_errors_total",
		Help: "Total number of internal errors that skipped all remaining ads",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ads_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		sessionsCreatedTotal,
		sessionsReleasedTotal,
		activeSessions,
		groupLoadErrorsTotal,
		internalErrorsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		sessionsCreatedTotal:  sessionsCreatedTotal,
		sessionsReleasedTotal: sessionsReleasedTotal,
		activeSessions:        activeSessions,
		groupLoadErrorsTotal:  groupLoadErrorsTotal,
		internalErrorsTotal:   internalErrorsTotal,
		errorsTotal:           errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncSessionsCreated increments the sessions created counter.
func (m *Metrics) IncSessionsCreated() {
	m.sessionsCreatedTotal.Inc()
}

// IncSessionsReleased increments the sessions released counter.
func (m *Metrics) IncSessionsReleased() {
	m.sessionsReleasedTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncGroupLoadErrors increments the group load error counter.
func (m *Metrics) IncGroupLoadErrors() {
	m.groupLoadErrorsTotal.Inc()
}

// IncInternalErrors increments the internal error counter.
func (m *Metrics) IncInternalErrors() {
	m.internalErrorsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
