// Copyright (c) 2014 The gomqtt Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package substore

import (
	"sync"

	"github.com/qingcloudhx/mqreg/subscriber"
)

type entry struct {
	set     Set
	deleted bool
	version uint64
}

// MemoryStore is a single-process reference implementation of Store. Every
// write is stamped with a monotonically increasing logical clock so that
// Merge (used to simulate cross-node replication in tests) can apply
// last-writer-wins resolution exactly as spec.md §3 requires: "conflicting
// concurrent writes are resolved last-writer-wins at read time", and a
// tombstone is a stored value rather than map-key absence, so readers
// "treat tombstone and absent identically" (I3) while Merge can still tell
// a late-arriving delete from a late-arriving insert.
//
// It is grounded on broker.MemoryBackend's mutex-guarded maps in the
// teacher's broker/backend.go, generalized from "plain map" to
// "map of versioned records".
type MemoryStore struct {
	mu      sync.RWMutex
	records map[subscriber.ID]*entry
	clock   uint64

	listenersMu sync.Mutex
	listeners   []func(Change)
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[subscriber.ID]*entry)}
}

func (m *MemoryStore) tick() uint64 {
	m.clock++
	return m.clock
}

// Get implements Store.
func (m *MemoryStore) Get(id subscriber.ID) (Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.records[id]
	if !ok || e.deleted {
		return Set{}, nil
	}

	return e.set.Clone(), nil
}

// Put implements Store.
func (m *MemoryStore) Put(id subscriber.ID, set Set) error {
	m.mu.Lock()
	old := m.snapshot(id)
	e := &entry{set: set.Clone(), version: m.tick()}
	m.records[id] = e
	new := e.set.Clone()
	m.mu.Unlock()

	m.notify(id, old, new, false)

	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(id subscriber.ID) error {
	m.mu.Lock()
	old := m.snapshot(id)
	m.records[id] = &entry{deleted: true, version: m.tick()}
	m.mu.Unlock()

	m.notify(id, old, nil, true)

	return nil
}

// Fold implements Store.
func (m *MemoryStore) Fold(f func(Record) error) error {
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for id, e := range m.records {
		if e.deleted {
			continue
		}
		records = append(records, Record{ID: id, Set: e.set.Clone()})
	}
	m.mu.RUnlock()

	for _, r := range records {
		if err := f(r); err != nil {
			return err
		}
	}

	return nil
}

// Size implements Store.
func (m *MemoryStore) Size() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.records {
		if !e.deleted {
			n++
		}
	}

	return n, nil
}

// Merge applies a remote write using last-writer-wins on version, simulating
// the anti-entropy a real replicated store performs. It is used by the
// clustersim package's in-memory node simulation, never by package registry
// directly.
func (m *MemoryStore) Merge(id subscriber.ID, set Set, deleted bool, version uint64) {
	m.mu.Lock()
	cur, ok := m.records[id]
	if ok && cur.version >= version {
		m.mu.Unlock()
		return
	}

	old := m.snapshot(id)
	m.records[id] = &entry{set: set.Clone(), deleted: deleted, version: version}
	if version > m.clock {
		m.clock = version
	}
	var new Set
	if !deleted {
		new = set.Clone()
	}
	m.mu.Unlock()

	m.notify(id, old, new, deleted)
}

// Version returns the current logical clock value for id, used by callers
// replicating this store's writes to other simulated nodes.
func (m *MemoryStore) Version(id subscriber.ID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.records[id]; ok {
		return e.version
	}
	return 0
}

// snapshot must be called with mu held.
func (m *MemoryStore) snapshot(id subscriber.ID) Set {
	if e, ok := m.records[id]; ok && !e.deleted {
		return e.set.Clone()
	}
	return nil
}

// Subscribe registers f to be called on every Put/Delete/Merge, diffed into
// a Change per spec.md's subscribe_changes(). It returns an unsubscribe
// func.
func (m *MemoryStore) Subscribe(f func(Change)) (cancel func()) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, f)
	idx := len(m.listeners) - 1
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		m.listeners[idx] = nil
	}
}

func (m *MemoryStore) notify(id subscriber.ID, old, new Set, deleted bool) {
	change, ok := Diff(id, old, new, deleted)
	if !ok {
		return
	}

	m.listenersMu.Lock()
	listeners := make([]func(Change), 0, len(m.listeners))
	for _, l := range m.listeners {
		if l != nil {
			listeners = append(listeners, l)
		}
	}
	m.listenersMu.Unlock()

	for _, l := range listeners {
		l(change)
	}
}
