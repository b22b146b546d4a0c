package windowcache

import (
	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/bamcache/recordstore"
	"github.com/grailbio/hts/sam"
)

// Group is the set of records sharing one aligned span [start, end).
type Group struct {
	// Representative is the first record of the group.
	Representative *sam.Record
	// Records lists every record of the group, Representative included.
	Records []*sam.Record
}

// Groups iterates over the result of a Query.  It is forward-only and cannot
// be restarted.  The records it yields may be shared with the cache and must
// not be modified.
//
// Usage:
//
//   groups, err := cache.Query(ctx, region, mode)
//   ...
//   for groups.Scan() {
//     g := groups.Group()
//     ...
//   }
//   err = groups.Close()
type Groups struct {
	// Cache hits resolve index entries against the store.
	entries []interval.Entry
	store   *recordstore.Store
	missing *stat

	// Bypassed queries stream straight from the provider.
	iter  bamprovider.Iterator
	valid func(*sam.Record) bool

	cur    Group
	err    error
	closed bool
}

func newIndexGroups(entries []interval.Entry, store *recordstore.Store, missing *stat) *Groups {
	return &Groups{entries: entries, store: store, missing: missing}
}

func newBypassGroups(iter bamprovider.Iterator, valid func(*sam.Record) bool) *Groups {
	return &Groups{iter: iter, valid: valid}
}

// Scan advances to the next group. It returns false at the end of the result
// or on error.
func (g *Groups) Scan() bool {
	if g.closed || g.err != nil {
		return false
	}
	if g.iter != nil {
		return g.scanSource()
	}
	for len(g.entries) > 0 {
		e := g.entries[0]
		g.entries = g.entries[1:]
		g.cur = Group{}
		for _, key := range e.Keys {
			rec, ok := g.store.Get(recordstore.Key(key))
			if !ok {
				// Expired, evicted or lost to a failed write.
				g.missing.add(1)
				continue
			}
			if g.cur.Representative == nil {
				g.cur.Representative = rec
			}
			g.cur.Records = append(g.cur.Records, rec)
		}
		if g.cur.Representative != nil {
			return true
		}
	}
	return false
}

func (g *Groups) scanSource() bool {
	for g.iter.Scan() {
		rec := g.iter.Record()
		if g.valid(rec) {
			g.cur = Group{Representative: rec, Records: []*sam.Record{rec}}
			return true
		}
	}
	g.err = g.iter.Err()
	return false
}

// Group returns the current group.
//
// REQUIRES: the last call to Scan returned true.
func (g *Groups) Group() Group { return g.cur }

// Err returns the error that stopped Scan, if any.
func (g *Groups) Err() error { return g.err }

// Close releases the iterator and returns Err. It is idempotent.
func (g *Groups) Close() error {
	if g.closed {
		return g.err
	}
	g.closed = true
	g.entries = nil
	if g.iter != nil {
		if err := g.iter.Close(); err != nil && g.err == nil {
			g.err = err
		}
		g.iter = nil
	}
	return g.err
}
