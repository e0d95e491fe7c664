package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for identity hashing.
type Metrics struct {
	Resolutions  *prometheus.CounterVec
	HashDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_identity_resolutions_total",
			Help: "Total number of identity hashing attempts by outcome",
		}, []string{"outcome"}),
		HashDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonid_identity_hash_duration_seconds",
			Help:    "Time spent deriving anonymous identifiers",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
	}
}

func (m *Metrics) observe(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.HashDuration.Observe(seconds)
}
