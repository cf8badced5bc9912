package cache

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	probeErrors   prometheus.Counter
	persistErrors prometheus.Counter
	peers         prometheus.Gauge
	queries       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lancache",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Resolves served from the cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lancache",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Resolves that had to probe the network",
		}),
		probeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lancache",
			Subsystem: "cache",
			Name:      "probe_errors_total",
			Help:      "Failed network probes",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lancache",
			Subsystem: "cache",
			Name:      "persist_errors_total",
			Help:      "Failed writes of the durable store",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lancache",
			Subsystem: "cache",
			Name:      "peer_entries",
			Help:      "Devices currently held in the cache",
		}),
		queries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lancache",
			Subsystem: "cache",
			Name:      "query_entries",
			Help:      "Targets currently held in the cache",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.probeErrors, m.persistErrors, m.peers, m.queries)
	}
	return m
}

func (m *metrics) observeStore(s Store) {
	m.peers.Set(float64(len(s.Peers)))
	m.queries.Set(float64(len(s.Queries)))
}
