package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	CredentialsGranted *prometheus.CounterVec
	CredentialsDenied  *prometheus.CounterVec
	FieldsAccessed     prometheus.Counter
	AccessDenied       *prometheus.CounterVec
	SessionsRevoked    prometheus.Counter
	SessionsExpired    prometheus.Counter
	ActiveSessions     prometheus.Gauge
	AuditWriteFailures prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CredentialsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shelteraccess_credentials_granted_total",
			Help: "Credential grants by access level",
		}, []string{"level"}),
		CredentialsDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shelteraccess_credentials_denied_total",
			Help: "Denied credential requests by reason",
		}, []string{"reason"}),
		FieldsAccessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shelteraccess_fields_accessed_total",
			Help: "Protected field reads that succeeded",
		}),
		AccessDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shelteraccess_access_denied_total",
			Help: "Refused protected field reads by reason",
		}, []string{"reason"}),
		SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shelteraccess_sessions_revoked_total",
			Help: "Sessions ended explicitly or by supersession",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shelteraccess_sessions_expired_total",
			Help: "Sessions removed after their validity elapsed",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "shelteraccess_active_sessions",
			Help: "Currently live credential sessions",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shelteraccess_audit_write_failures_total",
			Help: "Audit appends that failed and aborted their operation",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shelteraccess_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveRequest records one request's latency.
func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
