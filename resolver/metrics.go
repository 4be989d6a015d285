package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports resolver counters to prometheus. One instance is normally
// shared by all resolver generations of a process. Nil Metrics is valid and
// does nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	faults       prometheus.Counter
	evictions    prometheus.Counter
	rules        prometheus.Gauge
	cacheEntries prometheus.Gauge
	reloads      *prometheus.CounterVec
}

// Request outcome label values.
const (
	outcomeHit      = "hit"
	outcomeMiss     = "miss"
	outcomeUncached = "uncached"
)

// NewMetrics creates and registers resolver collectors. When reg is nil
// prometheus default registerer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "resolver",
			Name:      "requests_total",
			Help:      "Number of resolution requests by cache outcome.",
		}, []string{"outcome"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "resolver",
			Name:      "faults_total",
			Help:      "Number of resolutions which failed and produced empty result.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "resolver",
			Name:      "cache_evictions_total",
			Help:      "Number of entries evicted from resolution cache.",
		}),
		rules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cascade",
			Subsystem: "resolver",
			Name:      "rules",
			Help:      "Number of rules in active rule set.",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cascade",
			Subsystem: "resolver",
			Name:      "cache_entries",
			Help:      "Number of entries in resolution cache of active generation.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascade",
			Subsystem: "rules",
			Name:      "reloads_total",
			Help:      "Number of rule set reload attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.faults, m.evictions, m.rules, m.cacheEntries, m.reloads)
	return m
}

func (m *Metrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) fault() {
	if m == nil {
		return
	}
	m.faults.Inc()
}

func (m *Metrics) cacheStored(evicted bool, entries int) {
	if m == nil {
		return
	}
	if evicted {
		m.evictions.Inc()
	}
	m.cacheEntries.Set(float64(entries))
}

func (m *Metrics) activated(rules int) {
	if m == nil {
		return
	}
	m.rules.Set(float64(rules))
	m.cacheEntries.Set(0)
}

// Reloaded records outcome of a rule set reload attempt.
func (m *Metrics) Reloaded(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.reloads.WithLabelValues(result).Inc()
}
