// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for emergency resolutions.
const (
	OutcomeResolved        = "resolved"
	OutcomeInvalidIdentity = "invalid_identity"
	OutcomeNotFound        = "not_found"
	OutcomeAuditFailed     = "audit_failed"
)

// Metrics is passed to the services that record domain events. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EmergencyResolutions *prometheus.CounterVec
	AuditWriteFailures   *prometheus.CounterVec
	SearchesRecorded     prometheus.Counter
	AccessDenied         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EmergencyResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fichamed",
			Name:      "emergency_resolutions_total",
			Help:      "Emergency QR resolutions by outcome and matching strategy.",
		}, []string{"outcome", "strategy"}),
		AuditWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fichamed",
			Name:      "audit_write_failures_total",
			Help:      "Emergency access records that could not be written, by sink.",
		}, []string{"sink"}),
		SearchesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fichamed",
			Name:      "search_history_records_total",
			Help:      "Patient searches appended to search history.",
		}),
		AccessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fichamed",
			Name:      "access_denied_total",
			Help:      "Authorization denials by role and resource.",
		}, []string{"role", "resource"}),
	}
	reg.MustRegister(
		m.EmergencyResolutions,
		m.AuditWriteFailures,
		m.SearchesRecorded,
		m.AccessDenied,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Resolution(outcome, strategy string) {
	if m == nil {
		return
	}
	m.EmergencyResolutions.WithLabelValues(outcome, strategy).Inc()
}

func (m *Metrics) AuditFailure(sink string) {
	if m == nil {
		return
	}
	m.AuditWriteFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) SearchRecorded() {
	if m == nil {
		return
	}
	m.SearchesRecorded.Inc()
}

func (m *Metrics) Denied(role, resource string) {
	if m == nil {
		return
	}
	m.AccessDenied.WithLabelValues(role, resource).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
