package recordstore

import (
	"github.com/grailbio/base/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts record store activity across every store of a Manager.
type Metrics struct {
	puts        prometheus.Counter
	hits        prometheus.Counter
	misses      prometheus.Counter
	spills      prometheus.Counter
	spillHits   prometheus.Counter
	spillErrors prometheus.Counter
	expirations prometheus.Counter
	liveStores  prometheus.Gauge
}

func newCounter(reg prometheus.Registerer, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bamcache",
		Subsystem: "recordstore",
		Name:      name,
		Help:      help,
	})
	return register(reg, c).(prometheus.Counter)
}

// register registers c with reg, returning the collector already registered
// under the same name if there is one.  A nil reg leaves c unregistered.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		log.Error.Printf("recordstore: register metric: %v", err)
	}
	return c
}

// NewMetrics creates the record store collectors and registers them with reg.
// reg may be nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		puts:        newCounter(reg, "puts_total", "Records stored."),
		hits:        newCounter(reg, "hits_total", "Lookups that found a live record."),
		misses:      newCounter(reg, "misses_total", "Lookups that found no live record."),
		spills:      newCounter(reg, "spills_total", "Records moved from memory to the spill tier."),
		spillHits:   newCounter(reg, "spill_hits_total", "Lookups served from the spill tier."),
		spillErrors: newCounter(reg, "spill_errors_total", "Records lost because spilling them failed."),
		expirations: newCounter(reg, "expirations_total", "Records dropped after outliving their lifetime."),
		liveStores: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bamcache",
			Subsystem: "recordstore",
			Name:      "live_stores",
			Help:      "Stores created and not yet disposed.",
		})).(prometheus.Gauge),
	}
}
