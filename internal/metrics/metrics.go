package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the portal. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	EligibilityChecks *prometheus.CounterVec
	GeocodeLatency    prometheus.Histogram
	Signups           *prometheus.CounterVec
	Logins            *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		EligibilityChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parisgate_eligibility_checks_total",
			Help: "Address eligibility checks by outcome (accepted, rejected, not_found, unavailable).",
		}, []string{"outcome"}),
		GeocodeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parisgate_geocode_duration_seconds",
			Help:    "Latency of outbound geocoding lookups.",
			Buckets: prometheus.DefBuckets,
		}),
		Signups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parisgate_signups_total",
			Help: "Signup attempts by outcome.",
		}, []string{"outcome"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parisgate_logins_total",
			Help: "Sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"}),
	}
}

// RecordEligibility counts one eligibility decision. Safe on a nil receiver.
func (m *Metrics) RecordEligibility(outcome string) {
	if m == nil {
		return
	}
	m.EligibilityChecks.WithLabelValues(outcome).Inc()
}

// ObserveGeocode records the duration of a geocoding lookup.
func (m *Metrics) ObserveGeocode(d time.Duration) {
	if m == nil {
		return
	}
	m.GeocodeLatency.Observe(d.Seconds())
}

// RecordSignup counts one signup attempt.
func (m *Metrics) RecordSignup(outcome string) {
	if m == nil {
		return
	}
	m.Signups.WithLabelValues(outcome).Inc()
}

// RecordLogin counts one sign-in attempt.
func (m *Metrics) RecordLogin(method, outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(method, outcome).Inc()
}
