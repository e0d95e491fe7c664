package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks        *prometheus.CounterVec
	Risk          prometheus.Histogram
	Activity      prometheus.Counter
	StoreDegraded prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_correlation_checks_total",
			Help: "Correlation checks by outcome (allowed, blocked, error)",
		}, []string{"outcome"}),
		Risk: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonid_correlation_risk_score",
			Help:    "Risk score observed at check time",
			Buckets: []float64{10, 25, 50, 75, 90, 95, 99, 100},
		}),
		Activity: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_correlation_activity_total",
			Help: "Successful resolutions recorded against a segment",
		}),
		StoreDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "anonid_correlation_store_degraded",
			Help: "1 while the correlation store serves from the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementChecks(outcome string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRisk(score int) {
	if m == nil {
		return
	}
	m.Risk.Observe(float64(score))
}

func (m *Metrics) IncrementActivity() {
	if m == nil {
		return
	}
	m.Activity.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.StoreDegraded.Set(1)
		return
	}
	m.StoreDegraded.Set(0)
}
