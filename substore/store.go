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

import "github.com/qingcloudhx/mqreg/subscriber"

// Change describes one subscribe_changes() event, derived from diffing the
// old and new value of a record. Either (Removed,Added) or (Delete,Old)
// is meaningful, mirroring spec.md's
// "{update, id, removed, added} | {delete, id, old}".
type Change struct {
	ID      subscriber.ID
	Delete  bool
	Old     Set
	Removed Set
	Added   Set
}

// Store is the façade over the replicated metadata store. Every method is
// expected to be wrapped by the admission gate by callers in package
// registry; Store itself does no rate limiting.
type Store interface {
	// Get returns the current set for id. An absent or tombstoned record
	// returns an empty set and no error.
	Get(id subscriber.ID) (Set, error)

	// Put replaces the entire set for id.
	Put(id subscriber.ID, set Set) error

	// Delete tombstones the record for id.
	Delete(id subscriber.ID) error

	// Fold iterates every non-tombstoned record with LWW conflict
	// resolution already applied.
	Fold(f func(Record) error) error

	// Size returns the number of non-tombstoned records, used by
	// total_subscriptions.
	Size() (int, error)
}

// Subscribable is implemented by Store implementations that expose
// spec.md §4.2's subscribe_changes() stream. Kept as a separate, optional
// interface rather than folded into Store so that a minimal Store (e.g. a
// thin RPC client to a remote node's store) need not implement it.
type Subscribable interface {
	// Subscribe registers f to be called with every Put/Delete/Merge,
	// diffed into a Change. It returns a func that cancels the
	// subscription.
	Subscribe(f func(Change)) (cancel func())
}
