package windowcache

import (
	"sync/atomic"

	"github.com/grailbio/base/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/grailbio/bamcache/windowcache")

// Stats is a snapshot of a Cache's counters.
type Stats struct {
	// Queries counts calls to Query that were accepted.
	Queries int64
	// Hits counts queries answered from the current window.
	Hits int64
	// Refreshes counts attempts to repopulate the window.
	Refreshes int64
	// FailedRefreshes counts refreshes aborted by a source error.
	FailedRefreshes int64
	// Bypasses counts queries wider than the window capacity.
	Bypasses int64
	// MissingKeys counts indexed keys whose record was no longer in the store.
	MissingKeys int64
	// SkippedWrites counts records the store failed to accept.
	SkippedWrites int64
}

// stat is a counter mirrored into prometheus.
type stat struct {
	n int64
	c prometheus.Counter
}

func (s *stat) add(n int) {
	atomic.AddInt64(&s.n, int64(n))
	s.c.Add(float64(n))
}

func (s *stat) load() int64 { return atomic.LoadInt64(&s.n) }

type stats struct {
	queries, hits, refreshes, failedRefreshes, bypasses, missingKeys, skippedWrites stat
}

func newStat(reg prometheus.Registerer, name, help string) stat {
	var c prometheus.Collector = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bamcache",
		Subsystem: "windowcache",
		Name:      name,
		Help:      help,
	})
	if reg != nil {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				c = are.ExistingCollector
			} else {
				log.Error.Printf("windowcache: register metric %s: %v", name, err)
			}
		}
	}
	return stat{c: c.(prometheus.Counter)}
}

func newStats(reg prometheus.Registerer) *stats {
	return &stats{
		queries:         newStat(reg, "queries_total", "Accepted queries."),
		hits:            newStat(reg, "hits_total", "Queries answered from the current window."),
		refreshes:       newStat(reg, "refreshes_total", "Window repopulations."),
		failedRefreshes: newStat(reg, "failed_refreshes_total", "Window repopulations aborted by a source error."),
		bypasses:        newStat(reg, "bypasses_total", "Queries wider than the window capacity."),
		missingKeys:     newStat(reg, "missing_keys_total", "Indexed records absent from the store at lookup."),
		skippedWrites:   newStat(reg, "skipped_writes_total", "Records the store failed to accept."),
	}
}

func (s *stats) snapshot() Stats {
	return Stats{
		Queries:         s.queries.load(),
		Hits:            s.hits.load(),
		Refreshes:       s.refreshes.load(),
		FailedRefreshes: s.failedRefreshes.load(),
		Bypasses:        s.bypasses.load(),
		MissingKeys:     s.missingKeys.load(),
		SkippedWrites:   s.skippedWrites.load(),
	}
}
