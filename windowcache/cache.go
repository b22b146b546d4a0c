package windowcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/bamcache/recordstore"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// State is the lifecycle state of a Cache.
type State int

const (
	// Uninitialized means the cache holds no window: no query has been
	// answered from it yet, or the last refresh failed.
	Uninitialized State = iota
	// Active means the cache holds a window.
	Active
	// Disposed means Close has been called.
	Disposed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Cache answers region queries against a Provider through a sliding window of
// cached records.
//
// Query calls are serialized internally.  The Groups returned by one query may
// be read while a later query refreshes the window; records of the replaced
// window then read as absent.
type Cache struct {
	provider bamprovider.Provider
	manager  *recordstore.Manager
	opts     Opts
	header   *sam.Header
	stats    *stats

	mu       sync.Mutex
	window   *Window
	index    *interval.Index
	store    *recordstore.Store
	disposed bool
}

// New creates a cache over provider.  Stores are created through manager,
// which the host owns: its DisposeAll removes the stores of caches that were
// never closed.  New creates opts.StoreDir.
func New(provider bamprovider.Provider, manager *recordstore.Manager, opts Opts) (*Cache, error) {
	if manager == nil {
		return nil, errors.E(errors.Invalid, "windowcache: nil store manager")
	}
	if opts.WindowCapacity <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("windowcache: window capacity %d must be positive", opts.WindowCapacity))
	}
	if opts.StoreDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.E(err, "windowcache: resolve store directory")
		}
		opts.StoreDir = filepath.Join(wd, defaultStoreDir)
	}
	if err := os.MkdirAll(opts.StoreDir, 0755); err != nil {
		return nil, errors.E(err, "windowcache: create store directory", opts.StoreDir)
	}
	if opts.Valid == nil {
		opts.Valid = DefaultFlagFilter.Valid
	}
	header, err := provider.GetHeader()
	if err != nil {
		return nil, errors.E(err, "windowcache: read header")
	}
	log.Debug.Printf("windowcache: capacity %d, stores in %s (%v)", opts.WindowCapacity, opts.StoreDir, opts.SpillBackend)
	return &Cache{
		provider: provider,
		manager:  manager,
		opts:     opts,
		header:   header,
		stats:    newStats(opts.Registerer),
	}, nil
}

// Query returns the groups of records that satisfy mode against region.
//
// A region wider than the window capacity is read straight from the provider,
// one group per record, leaving the cache untouched.  Otherwise, if the
// current window was built with another mode or does not contain region, the
// window is refreshed first.  The records are then looked up through the
// window's index and store, one group per distinct aligned span, ordered by
// (start, end).  Records that have left the store are omitted.
//
// Errors from the provider during a refresh are returned; the cache is then
// left without a window.
func (c *Cache) Query(ctx context.Context, region interval.Region, mode bamprovider.Containment) (*Groups, error) {
	if region.End < region.Start {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("windowcache: inverted region %v", region))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, errors.E(errors.Precondition, "windowcache: query on closed cache")
	}
	c.stats.queries.add(1)
	if region.Len() > c.opts.WindowCapacity {
		c.stats.bypasses.add(1)
		return newBypassGroups(c.provider.Query(region, mode), c.opts.Valid), nil
	}
	if c.window.Serves(region, mode) {
		c.stats.hits.add(1)
	} else if err := c.refresh(ctx, region, mode); err != nil {
		return nil, err
	}
	entries := c.index.Overlappers(region.Start, region.End)
	if mode == bamprovider.FullyContained {
		n := 0
		for _, e := range entries {
			if region.Start <= e.Start && e.End <= region.End {
				entries[n] = e
				n++
			}
		}
		entries = entries[:n]
	}
	return newIndexGroups(entries, c.store, &c.stats.missingKeys), nil
}

// State returns the lifecycle state of the cache.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.disposed:
		return Disposed
	case c.window == nil:
		return Uninitialized
	}
	return Active
}

// Window returns a copy of the current window, or nil if there is none.
func (c *Cache) Window() *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window == nil {
		return nil
	}
	w := *c.window
	return &w
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

// Close disposes the current store.  It does not close the provider.  Close is
// idempotent; Query fails after Close.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil
	}
	c.dropWindow()
	c.disposed = true
	return nil
}
