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

// Package substore wraps the replicated cluster-wide subscription store.
// It is keyed by subscriber.ID and holds an unordered set of
// (topic, qos, owner node) triples, resolved last-writer-wins at read time.
package substore

import (
	"strings"

	"github.com/qingcloudhx/mqreg/subscriber"
)

// Tuple is one (topic, qos, owner node) entry of a subscription record.
type Tuple struct {
	Topic     string
	QOS       byte
	OwnerNode string
}

// Words splits Topic on "/" the way MQTT topic matching requires.
func (t Tuple) Words() []string {
	return strings.Split(t.Topic, "/")
}

// Set is the unordered collection of tuples for one subscriber.ID. Key
// uniqueness is by (topic, qos, owner node), per spec.md's set semantics.
type Set map[Tuple]struct{}

// NewSet builds a Set from a slice of tuples, deduplicating as it goes.
func NewSet(tuples ...Tuple) Set {
	s := make(Set, len(tuples))
	for _, t := range tuples {
		s[t] = struct{}{}
	}
	return s
}

// Clone returns a shallow copy safe for independent mutation.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Slice returns the tuples as a slice, order unspecified.
func (s Set) Slice() []Tuple {
	out := make([]Tuple, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	return out
}

// Record pairs a subscriber.ID with its current Set, used by Fold.
type Record struct {
	ID  subscriber.ID
	Set Set
}
