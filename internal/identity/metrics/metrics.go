package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module.
// Tracks contact creation counts, race recoveries, and identify latency.
type Metrics struct {
	PrimariesCreated    prometheus.Counter
	SecondariesCreated  prometheus.Counter
	PrimaryRaceRetries  prometheus.Counter
	FingerprintFailures prometheus.Counter
	IdentifyDuration    prometheus.Histogram
}

// New creates a Metrics instance with all identity module metrics registered.
func New() *Metrics {
	return &Metrics{
		PrimariesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_primary_contacts_created_total",
			Help: "Total number of primary contacts created (new identity clusters)",
		}),
		SecondariesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_secondary_contacts_created_total",
			Help: "Total number of secondary contacts linked to existing clusters",
		}),
		PrimaryRaceRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_primary_race_retries_total",
			Help: "Total number of primary inserts that lost the uniqueness race and retried as secondaries",
		}),
		FingerprintFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "contactlink_fingerprint_failures_total",
			Help: "Total number of identify calls failed by the fingerprint provider",
		}),
		IdentifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "contactlink_identify_duration_seconds",
			Help:    "Duration of identify operations (request critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementPrimariesCreated records a successful primary creation.
func (m *Metrics) IncrementPrimariesCreated() {
	m.PrimariesCreated.Inc()
}

// IncrementSecondariesCreated records a successful secondary creation.
func (m *Metrics) IncrementSecondariesCreated() {
	m.SecondariesCreated.Inc()
}

// IncrementPrimaryRaceRetries records a lost primary-creation race.
func (m *Metrics) IncrementPrimaryRaceRetries() {
	m.PrimaryRaceRetries.Inc()
}

// IncrementFingerprintFailures records a provider resolution failure.
func (m *Metrics) IncrementFingerprintFailures() {
	m.FingerprintFailures.Inc()
}

// ObserveIdentify records the duration of an identify operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIdentify(start time.Time) {
	m.IdentifyDuration.Observe(time.Since(start).Seconds())
}
