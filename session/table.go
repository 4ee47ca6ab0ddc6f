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

// Package session implements the node-local, ephemeral table mapping a
// subscriber.ID to its live queue handle(s). Rows are only ever written by
// the registry coordinator; reads happen from any goroutine.
//
// Grounded on broker.MemoryBackend's storedSessions/temporarySessions maps
// in the teacher's broker/backend.go: one mutex-guarded map, generalized
// here to bag (multi-row) semantics so allow_multiple_sessions can hold
// more than one session.Ref per subscriber.ID while I1 still guarantees a
// single queue handle per key.
package session

import (
	"sync"

	"github.com/qingcloudhx/mqreg/subscriber"
)

// Ref identifies one session front-end sharing a subscriber.ID's queue,
// e.g. a particular MQTT connection.
type Ref any

// QueueHandle is the narrow view of a queue.Handle the session table needs;
// defined here (rather than importing package queue) to avoid a cycle,
// since package queue does not need to know about session.Table.
type QueueHandle interface {
	ID() string
}

// Row is one entry of the bag. All rows sharing a key carry the identical
// Queue value (I1); the bag varies over Ref/Clean/Balance, not over queue
// identity.
type Row struct {
	Ref      Ref
	Queue    QueueHandle
	Liveness string
	LastSeen int64
	Balance  bool
	Clean    bool
}

// ErrNotFound is returned by GetQueue when id has no row.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "session: not found" }

// Table is the concurrent bag map described by spec.md §4.3. Reads are safe
// from any goroutine; writes must be confined to a single caller (the
// registry coordinator) to preserve I1.
type Table struct {
	mu   sync.RWMutex
	rows map[subscriber.ID][]Row
}

// New returns an empty table.
func New() *Table {
	return &Table{rows: make(map[subscriber.ID][]Row)}
}

// GetQueue returns the first row's queue handle for id, or ErrNotFound.
func (t *Table) GetQueue(id subscriber.ID) (QueueHandle, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := t.rows[id]
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	return rows[0].Queue, nil
}

// Rows returns a copy of the rows held for id.
func (t *Table) Rows(id subscriber.ID) []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := t.rows[id]
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// Has reports whether id currently has any row, i.e. whether this node
// hosts id's queue (I4: the session table is authoritative for this).
func (t *Table) Has(id subscriber.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.rows[id]) > 0
}

// Insert adds a row for id. Must only be called by the coordinator.
func (t *Table) Insert(id subscriber.ID, row Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows[id] = append(t.rows[id], row)
}

// Replace overwrites all rows for id with a single row. No registration
// path calls it: exclusive-mode registration adds rows via Insert.
func (t *Table) Replace(id subscriber.ID, row Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows[id] = []Row{row}
}

// RemoveByHandle deletes every row across every key whose Queue and
// Liveness match, per spec.md §4.5's queue-death handling: "delete every
// row where both queue_handle = handle and liveness_token = token". It
// returns the ids that lost their last row.
func (t *Table) RemoveByHandle(handle QueueHandle, liveness string) []subscriber.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var emptied []subscriber.ID

	for id, rows := range t.rows {
		kept := rows[:0:0]
		for _, r := range rows {
			if r.Queue == handle && r.Liveness == liveness {
				continue
			}
			kept = append(kept, r)
		}

		if len(kept) == 0 {
			delete(t.rows, id)
			emptied = append(emptied, id)
		} else if len(kept) != len(rows) {
			t.rows[id] = kept
		}
	}

	return emptied
}

// Delete removes every row for id unconditionally. Clean-session
// registration does not call it; rows leave the table via RemoveByHandle.
func (t *Table) Delete(id subscriber.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.rows, id)
}

// Fold iterates a snapshot of every (id, rows) pair, used by C9
// introspection's fold_sessions.
func (t *Table) Fold(f func(subscriber.ID, []Row) error) error {
	t.mu.RLock()
	snapshot := make(map[subscriber.ID][]Row, len(t.rows))
	for id, rows := range t.rows {
		cp := make([]Row, len(rows))
		copy(cp, rows)
		snapshot[id] = cp
	}
	t.mu.RUnlock()

	for id, rows := range snapshot {
		if err := f(id, rows); err != nil {
			return err
		}
	}

	return nil
}

// Count returns the number of rows in the table (not the number of
// distinct ids), used by total_sessions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, rows := range t.rows {
		n += len(rows)
	}
	return n
}
