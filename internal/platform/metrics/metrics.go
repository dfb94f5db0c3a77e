package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RegistrationsTotal    prometheus.Counter
	RegistrationConflicts prometheus.Counter
	GeofenceAlerts        prometheus.Counter
	ZoneTransitions       *prometheus.CounterVec
	RequestDuration       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visitid_registrations_total",
			Help: "Total number of identity records issued by the ledger",
		}),
		RegistrationConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visitid_registration_conflicts_total",
			Help: "Registration attempts rejected because the owner already holds a record",
		}),
		GeofenceAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "visitid_geofence_alerts_total",
			Help: "Alerts raised on entry into a danger-classified zone",
		}),
		ZoneTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "visitid_zone_transitions_total",
			Help: "Zone changes applied by the geofence monitor, by risk class",
		}, []string{"risk"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visitid_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncRegistrations() {
	if m != nil {
		m.RegistrationsTotal.Inc()
	}
}

func (m *Metrics) IncRegistrationConflicts() {
	if m != nil {
		m.RegistrationConflicts.Inc()
	}
}

func (m *Metrics) IncGeofenceAlerts() {
	if m != nil {
		m.GeofenceAlerts.Inc()
	}
}

func (m *Metrics) IncZoneTransitions(risk string) {
	if m != nil {
		m.ZoneTransitions.WithLabelValues(risk).Inc()
	}
}
