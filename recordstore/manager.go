// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recordstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// DefaultPrefix is used for store IDs when the caller supplies none.
const DefaultPrefix = "windowcache"

// Manager creates stores and tracks the ones not yet disposed, so that a
// process can release all of them at exit.  Thread safe.
type Manager struct {
	metrics *Metrics

	mu   sync.Mutex
	seq  uint64
	live map[string]*Store
}

// NewManager creates a Manager whose stores report into metrics. A nil
// metrics creates unregistered collectors.
func NewManager(metrics *Metrics) *Manager {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{metrics: metrics, live: map[string]*Store{}}
}

// NewStore creates an empty store whose ID starts with prefix. The ID is
// unique within the process and is used to name the store's spill files.
func (m *Manager) NewStore(prefix string, opts Opts) (*Store, error) {
	if opts.MaxInMemory > 0 {
		if opts.Dir == "" {
			return nil, errors.E(errors.Invalid, "recordstore: spilling store needs a directory")
		}
		if opts.Header == nil {
			return nil, errors.E(errors.Invalid, "recordstore: spilling store needs a header")
		}
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("%s-%d-%s", prefix, m.seq, uuid.New().String())
	if _, ok := m.live[id]; ok {
		return nil, errors.E(errors.Exists, "recordstore: duplicate store id", id)
	}
	s := newStore(id, opts, m.metrics)
	m.live[id] = s
	m.metrics.liveStores.Inc()
	log.Debug.Printf("recordstore: created %s", id)
	return s, nil
}

// Dispose disposes s and forgets it. Failures are logged, never returned: a
// store that cannot clean up its files must not take the caller down with it.
// Disposing a nil or already disposed store is a no-op.
func (m *Manager) Dispose(s *Store) {
	if s == nil {
		return
	}
	m.mu.Lock()
	if _, ok := m.live[s.id]; ok {
		delete(m.live, s.id)
		m.metrics.liveStores.Dec()
	}
	m.mu.Unlock()
	if err := s.Dispose(); err != nil {
		log.Error.Printf("recordstore: dispose %s: %v", s.id, err)
	}
}

// DisposeAll disposes every live store. It is idempotent.
func (m *Manager) DisposeAll() {
	m.mu.Lock()
	stores := make([]*Store, 0, len(m.live))
	for _, s := range m.live {
		stores = append(stores, s)
	}
	m.mu.Unlock()
	for _, s := range stores {
		m.Dispose(s)
	}
	if len(stores) > 0 {
		log.Printf("recordstore: disposed %d store(s)", len(stores))
	}
}

// Live returns the sorted IDs of the stores not yet disposed.
func (m *Manager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
