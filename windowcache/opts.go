package windowcache

import (
	"time"

	"github.com/grailbio/bamcache/recordstore"
	"github.com/grailbio/hts/sam"
	"github.com/prometheus/client_golang/prometheus"
)

// Opts configures a Cache.
type Opts struct {
	// WindowCapacity is the width of the cached window, in bases.  Queries
	// wider than this bypass the cache.
	WindowCapacity int
	// StoreDir holds the spill files of the record stores.  It is created by
	// New.  If "", $PWD/.windowcache is used.
	StoreDir string
	// MaxEntryLifetime bounds how long a cached record stays retrievable.
	MaxEntryLifetime time.Duration
	// MaxInMemoryEntries is the number of records kept in memory before the
	// store starts spilling.
	MaxInMemoryEntries int
	SpillBackend       recordstore.Backend
	// Valid decides which records are cached and returned. If nil,
	// DefaultFlagFilter.Valid is used.
	Valid func(*sam.Record) bool
	// Registerer, if non-nil, receives the cache metrics.  Store metrics are
	// registered through recordstore.NewMetrics by the Manager's owner.
	Registerer  prometheus.Registerer
	StorePrefix string
}

// DefaultOpts holds the default options.
var DefaultOpts = Opts{
	WindowCapacity:     500000,
	MaxEntryLifetime:   7200 * time.Second,
	MaxInMemoryEntries: 300000,
	SpillBackend:       recordstore.SpoolFile,
	StorePrefix:        recordstore.DefaultPrefix,
}

// defaultStoreDir is created under the working directory.
const defaultStoreDir = ".windowcache"

// FlagFilter is a record validity predicate based on SAM flags and mapping
// quality.
type FlagFilter struct {
	// Exclude rejects records with any of these flags set.
	Exclude sam.Flags
	// MinMapQ rejects records with a lower mapping quality.
	MinMapQ byte
}

// DefaultFlagFilter rejects unmapped, secondary, QC-failed and duplicate
// records.
var DefaultFlagFilter = FlagFilter{
	Exclude: sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate,
}

// Valid reports whether r passes the filter.
func (f FlagFilter) Valid(r *sam.Record) bool {
	return r.Flags&f.Exclude == 0 && r.MapQ >= f.MinMapQ
}
