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

// Package retained implements the retained-message store collaborator of
// spec.md §1/§4.6.1/§4.7: insert/delete/match_fold over (mountpoint,
// topic, payload) records.
//
// Grounded on broker.MemoryBackend's retainedMessages *topic.Tree field and
// its StoreRetained/ClearRetained/QueueRetained methods in the teacher's
// broker/backend.go, generalized from a single mountpoint to the
// (mountpoint, topic) key the spec requires and from exact-match lookup to
// full wildcard match_fold shared with package routing.
package retained

import (
	"sync"

	"github.com/qingcloudhx/mqreg/routing"
)

// Record is one retained message.
type Record struct {
	Mountpoint string
	Topic      string
	Payload    []byte
}

// Store is the retained-message collaborator interface.
type Store interface {
	// Insert stores or replaces the retained message for (mountpoint,
	// topic).
	Insert(mountpoint, topic string, payload []byte) error

	// Delete removes the retained message for (mountpoint, topic), if any.
	Delete(mountpoint, topic string) error

	// MatchFold walks every retained record in mountpoint whose topic
	// matches the subscription filter, calling f for each hit.
	MatchFold(mountpoint, filter string, f func(Record) error) error

	// Size returns the total number of retained records, across all
	// mountpoints, used by C9's `retained` introspection value.
	Size() (int, error)
}

type key struct {
	mountpoint string
	topic      string
}

// MemoryStore is an in-memory reference Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[key][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[key][]byte)}
}

// Insert implements Store. An empty payload deletes per spec.md §4.7's
// dispatch table ("retain & empty payload -> retained-store delete").
func (m *MemoryStore) Insert(mountpoint, topic string, payload []byte) error {
	if len(payload) == 0 {
		return m.Delete(mountpoint, topic)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.records[key{mountpoint, topic}] = cp

	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(mountpoint, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key{mountpoint, topic})
	return nil
}

// MatchFold implements Store.
func (m *MemoryStore) MatchFold(mountpoint, filter string, f func(Record) error) error {
	m.mu.RLock()
	var hits []Record
	for k, payload := range m.records {
		if k.mountpoint != mountpoint {
			continue
		}
		if routing.Matches(filter, k.topic) {
			cp := make([]byte, len(payload))
			copy(cp, payload)
			hits = append(hits, Record{Mountpoint: mountpoint, Topic: k.topic, Payload: cp})
		}
	}
	m.mu.RUnlock()

	for _, r := range hits {
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

	return len(m.records), nil
}
