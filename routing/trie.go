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

package routing

import (
	"sync"

	"github.com/qingcloudhx/mqreg/subscriber"
)

// Item is one hit yielded by View.Fold: either a local delivery target
// (subscriber.ID, qos) or a remote node with at least one matching
// subscriber, per spec.md §4.7.
type Item struct {
	Local bool
	ID    subscriber.ID
	QOS   byte
	Node  string
}

// View is the narrow trait a publish router folds over, modeling the
// dynamically-selected reg_view module of spec.md §9.
type View interface {
	// Fold walks every subscriber in mountpoint whose registered filter
	// matches topic, calling visit once per local (id, qos) pair and once
	// per distinct remote node.
	Fold(mountpoint, topic, thisNode string, visit func(Item) error) error
}

// Index is the full read/write routing collaborator a registry holds:
// View for publish fan-out plus the mutations subscribe/unsubscribe apply.
type Index interface {
	View

	// Insert registers (id, qos, node) under filter in mountpoint.
	Insert(mountpoint, filter string, id subscriber.ID, qos byte, owner string)

	// Remove deregisters every entry for id under filter in mountpoint.
	Remove(mountpoint, filter string, id subscriber.ID)
}

type entry struct {
	id   subscriber.ID
	qos  byte
	node string
}

type node struct {
	children map[string]*node
	plus     *node
	hash     []entry
	entries  []entry
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Trie is the default routing view: one topic trie per mountpoint.
type Trie struct {
	mu    sync.RWMutex
	roots map[string]*node
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{roots: make(map[string]*node)}
}

// Insert registers (id, qos, node) under filter in mountpoint.
func (t *Trie) Insert(mountpoint, filter string, id subscriber.ID, qos byte, owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok := t.roots[mountpoint]
	if !ok {
		root = newNode()
		t.roots[mountpoint] = root
	}

	words := Words(filter)
	cur := root
	for i, w := range words {
		last := i == len(words)-1

		switch {
		case w == "#":
			e := entry{id: id, qos: qos, node: owner}
			cur.hash = appendUnique(cur.hash, e)
			return
		case w == "+":
			if cur.plus == nil {
				cur.plus = newNode()
			}
			cur = cur.plus
		default:
			child, ok := cur.children[w]
			if !ok {
				child = newNode()
				cur.children[w] = child
			}
			cur = child
		}

		if last {
			e := entry{id: id, qos: qos, node: owner}
			cur.entries = appendUnique(cur.entries, e)
		}
	}
}

func appendUnique(entries []entry, e entry) []entry {
	for i, existing := range entries {
		if existing.id == e.id && existing.node == e.node {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}

// Remove deregisters every entry for id under filter in mountpoint.
func (t *Trie) Remove(mountpoint, filter string, id subscriber.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok := t.roots[mountpoint]
	if !ok {
		return
	}

	words := Words(filter)
	cur := root
	for i, w := range words {
		last := i == len(words)-1

		switch {
		case w == "#":
			cur.hash = removeID(cur.hash, id)
			return
		case w == "+":
			if cur.plus == nil {
				return
			}
			cur = cur.plus
		default:
			child, ok := cur.children[w]
			if !ok {
				return
			}
			cur = child
		}

		if last {
			cur.entries = removeID(cur.entries, id)
		}
	}
}

func removeID(entries []entry, id subscriber.ID) []entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

// Fold implements View.
func (t *Trie) Fold(mountpoint, topic, thisNode string, visit func(Item) error) error {
	t.mu.RLock()
	root, ok := t.roots[mountpoint]
	if !ok {
		t.mu.RUnlock()
		return nil
	}

	var hits []entry
	fold(root, Words(topic), &hits)
	t.mu.RUnlock()

	seenNodes := make(map[string]bool)
	for _, e := range hits {
		if e.node == thisNode {
			if err := visit(Item{Local: true, ID: e.id, QOS: e.qos}); err != nil {
				return err
			}
			continue
		}

		if seenNodes[e.node] {
			continue
		}
		seenNodes[e.node] = true

		if err := visit(Item{Local: false, Node: e.node}); err != nil {
			return err
		}
	}

	return nil
}

func fold(n *node, words []string, hits *[]entry) {
	if len(n.hash) > 0 {
		*hits = append(*hits, n.hash...)
	}

	if len(words) == 0 {
		*hits = append(*hits, n.entries...)
		return
	}

	w, rest := words[0], words[1:]

	if child, ok := n.children[w]; ok {
		fold(child, rest, hits)
	}
	if n.plus != nil {
		fold(n.plus, rest, hits)
	}
}
