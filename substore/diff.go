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

// Diff turns a raw store event into the derived subscribe_changes() stream
// described by spec.md §4.2, suppressing tombstone<->undefined transitions
// (deleting an already-absent record, or observing a delete of a record
// this reader never saw, both produce no event).
func Diff(id subscriber.ID, old, new Set, deleted bool) (Change, bool) {
	if deleted {
		if len(old) == 0 {
			return Change{}, false
		}
		return Change{ID: id, Delete: true, Old: old}, true
	}

	removed := Set{}
	for t := range old {
		if _, ok := new[t]; !ok {
			removed[t] = struct{}{}
		}
	}

	added := Set{}
	for t := range new {
		if _, ok := old[t]; !ok {
			added[t] = struct{}{}
		}
	}

	if len(removed) == 0 && len(added) == 0 {
		return Change{}, false
	}

	return Change{ID: id, Removed: removed, Added: added}, true
}
