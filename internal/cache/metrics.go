package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache's prometheus instruments. A nil *Metrics is valid
// and records nothing, so library users without a registry pay no cost.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses prometheus.Counter
	stores prometheus.Counter
}

// NewMetrics registers the cache counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridagent_cache_hits_total",
			Help: "Cache hits by serving tier.",
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridagent_cache_misses_total",
			Help: "Lookups that missed both tiers.",
		}),
		stores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridagent_cache_stores_total",
			Help: "Write-through stores.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.stores)
	return m
}

func (m *Metrics) hit(tier string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(tier).Inc()
}

func (m *Metrics) miss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *Metrics) store() {
	if m == nil {
		return
	}
	m.stores.Inc()
}
