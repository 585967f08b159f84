package beauty

import "github.com/prometheus/client_golang/prometheus"

// newServerMetrics registers the gauges/counters a Server exposes and
// returns the handle ConnectionManager updates as connections and requests
// happen. Pass a dedicated *prometheus.Registry (or prometheus.NewRegistry())
// in tests to avoid colliding with the default global registry.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beauty",
			Name:      "connections_open",
			Help:      "Number of currently open HTTP connections.",
		}),
		wsConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beauty",
			Name:      "ws_connections_open",
			Help:      "Number of currently open WebSocket connections.",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beauty",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connectionsOpen, m.wsConnectionsOpen, m.requestsTotal)
	}
	return m
}
