package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the process-wide Prometheus registry and the build info
// gauge. Module metrics register against Registry.
type Registry struct {
	*prometheus.Registry
	BuildInfo *prometheus.GaugeVec
}

// New creates a registry with Go runtime and process collectors.
func New(version string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r := &Registry{
		Registry: reg,
		BuildInfo: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "anonid_build_info",
			Help: "Build information, value is always 1",
		}, []string{"version"}),
	}
	r.BuildInfo.WithLabelValues(version).Set(1)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}
