package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds transport-level Prometheus metrics shared by all handlers.
// Module-specific metrics live next to their module (internal/identity/metrics).
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers the platform metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contactlink_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "path", "status"}),
	}
}

// ObserveRequest records one handled request.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveRequest(method, path string, status int, start time.Time) {
	m.RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
