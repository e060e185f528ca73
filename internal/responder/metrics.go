package responder

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the responder's Prometheus instrumentation on its own
// registry so multiple responders can coexist in one process
type metrics struct {
	registry *prometheus.Registry

	echoedTotal  prometheus.Counter
	droppedTotal prometheus.Counter
	activePeers  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		echoedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "aether_responder_echoed_total",
				Help: "Total number of datagrams echoed back",
			},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "aether_responder_dropped_total",
				Help: "Total number of datagrams dropped by the rate cap",
			},
		),
		activePeers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "aether_responder_active_peers",
				Help: "Number of peers seen within the idle window",
			},
		),
	}
	m.registry.MustRegister(m.echoedTotal, m.droppedTotal, m.activePeers)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
