// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recordstore

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/grailbio/bamcache/encoding/bam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Backend selects the spill tier of a Store.
type Backend int

const (
	// SpoolFile spills to a snappy-compressed, append-only file.
	SpoolFile Backend = iota
	// SQLite spills to a sqlite database.
	SQLite
)

// String implements fmt.Stringer.
func (b Backend) String() string {
	switch b {
	case SpoolFile:
		return "spool"
	case SQLite:
		return "sqlite"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses the output of Backend.String.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "spool", "":
		return SpoolFile, nil
	case "sqlite":
		return SQLite, nil
	}
	return SpoolFile, errors.E(errors.Invalid, fmt.Sprintf("recordstore: unknown spill backend %q", s))
}

// Opts configures a Store.
type Opts struct {
	// Dir is the directory holding spill files. It must exist. Required when
	// MaxInMemory > 0.
	Dir string
	// MaxInMemory is the number of records kept in memory before the least
	// recently used ones are spilled. <= 0 means unbounded, in which case
	// nothing is ever spilled.
	MaxInMemory int
	// MaxLifetime bounds how long a record stays retrievable after Put.
	// <= 0 means forever.
	MaxLifetime time.Duration
	// Backend selects the spill tier.
	Backend Backend
	// Header resolves reference IDs of spilled records. Required when
	// MaxInMemory > 0.
	Header *sam.Header
}

type entry struct {
	key     Key
	rec     *sam.Record
	expires time.Time
}

func expired(expires, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}

// spillTier holds serialized records on secondary storage.
type spillTier interface {
	write(key Key, payload []byte) error
	read(key Key) ([]byte, error)
	remove(key Key) error
	// close releases the tier and deletes its files. It is idempotent.
	close() error
}

// Store is a key→record store with an LRU in-memory tier and a spill tier.
// Thread safe.
type Store struct {
	id      string
	opts    Opts
	metrics *Metrics
	now     func() time.Time

	mu    sync.Mutex
	items map[Key]*list.Element
	// order holds *entry, most recently used first.
	order *list.List
	// spilled maps the keys held by spill to their expiration time.
	spilled  map[Key]time.Time
	spill    spillTier
	disposed bool
}

func newStore(id string, opts Opts, metrics *Metrics) *Store {
	return &Store{
		id:      id,
		opts:    opts,
		metrics: metrics,
		now:     time.Now,
		items:   map[Key]*list.Element{},
		order:   list.New(),
		spilled: map[Key]time.Time{},
	}
}

// ID returns the identifier assigned by the Manager.
func (s *Store) ID() string { return s.id }

// Put stores rec under key, replacing any previous record. It fails if the
// store has been disposed or if making room for rec required a spill that
// failed; in the latter case the evicted record is lost, but rec is stored.
func (s *Store) Put(key Key, rec *sam.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errors.E(errors.Precondition, "recordstore: put into disposed store", s.id)
	}
	var expires time.Time
	if s.opts.MaxLifetime > 0 {
		expires = s.now().Add(s.opts.MaxLifetime)
	}
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		e.rec = rec
		e.expires = expires
		s.order.MoveToFront(el)
	} else {
		s.items[key] = s.order.PushFront(&entry{key: key, rec: rec, expires: expires})
		s.dropSpilled(key)
	}
	s.metrics.puts.Inc()
	return s.shrink()
}

// shrink spills least recently used entries until the in-memory tier fits.
//
// REQUIRES: s.mu is held.
func (s *Store) shrink() error {
	if s.opts.MaxInMemory <= 0 {
		return nil
	}
	var err error
	for len(s.items) > s.opts.MaxInMemory {
		el := s.order.Back()
		e := el.Value.(*entry)
		s.order.Remove(el)
		delete(s.items, e.key)
		if expired(e.expires, s.now()) {
			s.metrics.expirations.Inc()
			continue
		}
		if serr := s.spillEntry(e); serr != nil {
			s.metrics.spillErrors.Inc()
			if err == nil {
				err = errors.E(serr, "recordstore: spill", string(e.key), "from", s.id)
			}
		}
	}
	return err
}

// REQUIRES: s.mu is held.
func (s *Store) spillEntry(e *entry) error {
	if s.spill == nil {
		tier, err := openSpill(s.opts, s.id)
		if err != nil {
			return err
		}
		s.spill = tier
		log.Debug.Printf("recordstore %s: opened %v spill tier in %s", s.id, s.opts.Backend, s.opts.Dir)
	}
	payload, err := bam.MarshalBytes(e.rec)
	if err != nil {
		return err
	}
	if err := s.spill.write(e.key, payload); err != nil {
		return err
	}
	s.spilled[e.key] = e.expires
	s.metrics.spills.Inc()
	return nil
}

// dropSpilled forgets the spilled copy of key, if any.
//
// REQUIRES: s.mu is held.
func (s *Store) dropSpilled(key Key) {
	if _, ok := s.spilled[key]; !ok {
		return
	}
	delete(s.spilled, key)
	if err := s.spill.remove(key); err != nil {
		log.Error.Printf("recordstore %s: remove %s from spill: %v", s.id, key, err)
	}
}

// Get returns the record stored under key. A record that was never stored,
// has outlived MaxLifetime, or cannot be read back from the spill tier is
// reported as absent; read failures are logged.
func (s *Store) Get(key Key) (*sam.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, false
	}
	now := s.now()
	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry)
		if expired(e.expires, now) {
			s.order.Remove(el)
			delete(s.items, key)
			s.metrics.expirations.Inc()
			s.metrics.misses.Inc()
			return nil, false
		}
		s.order.MoveToFront(el)
		s.metrics.hits.Inc()
		return e.rec, true
	}
	expires, ok := s.spilled[key]
	if !ok {
		s.metrics.misses.Inc()
		return nil, false
	}
	if expired(expires, now) {
		s.dropSpilled(key)
		s.metrics.expirations.Inc()
		s.metrics.misses.Inc()
		return nil, false
	}
	rec, err := s.readSpilled(key)
	s.dropSpilled(key)
	if err != nil {
		log.Error.Printf("recordstore %s: read %s from spill: %v", s.id, key, err)
		s.metrics.misses.Inc()
		return nil, false
	}
	// Promote the record back into memory; this may push another one out.
	s.items[key] = s.order.PushFront(&entry{key: key, rec: rec, expires: expires})
	if err := s.shrink(); err != nil {
		log.Error.Printf("recordstore %s: %v", s.id, err)
	}
	s.metrics.spillHits.Inc()
	s.metrics.hits.Inc()
	return rec, true
}

// REQUIRES: s.mu is held.
func (s *Store) readSpilled(key Key) (*sam.Record, error) {
	payload, err := s.spill.read(key)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("spilled record %s is %d bytes", key, len(payload)))
	}
	return bam.Unmarshal(payload[4:], s.opts.Header)
}

// Remove deletes key from both tiers. Removing an absent key is a no-op.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if el, ok := s.items[key]; ok {
		s.order.Remove(el)
		delete(s.items, key)
	}
	s.dropSpilled(key)
}

// Len returns the number of records held in memory and in the spill tier,
// including ones that have expired but were not yet looked up.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) + len(s.spilled)
}

// Spilled returns the number of records held in the spill tier.
func (s *Store) Spilled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spilled)
}

// Dispose releases every resource of the store and deletes its spill files.
// Dispose is idempotent; after it returns, Put fails and Get reports every key
// absent.
func (s *Store) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	s.items = map[Key]*list.Element{}
	s.order.Init()
	s.spilled = map[Key]time.Time{}
	if s.spill == nil {
		return nil
	}
	err := s.spill.close()
	s.spill = nil
	return err
}

func openSpill(opts Opts, id string) (spillTier, error) {
	switch opts.Backend {
	case SpoolFile:
		return openSpool(opts.Dir, id)
	case SQLite:
		return openSQLite(opts.Dir, id)
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("recordstore: unknown spill backend %v", opts.Backend))
}
