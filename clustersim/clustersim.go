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

// Package clustersim provides a single-process, multi-"node" reference
// implementation of the cluster package's collaborator interfaces, used by
// this module's own tests in place of a real network RPC layer (spec.md
// §1: "out of scope... specified only by interface"). Each simulated node
// is a string id paired with a *registry.Registry; RegisterSubscriber,
// PublishToRemote and MigrateSession calls are dispatched in-process to the
// target node's Registry.
package clustersim

import (
	"context"
	"sync"

	"github.com/qingcloudhx/mqreg/cluster"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/registry"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/substore"
	"github.com/qingcloudhx/mqreg/subscriber"
)

type member struct {
	reg  *registry.Registry
	subs *substore.MemoryStore
}

// Cluster is a fixed set of simulated nodes sharing one logical cluster.
// It implements cluster.Oracle, cluster.RemotePublisher and
// cluster.MigrateCaller; RegisterLeader is provided per-node by Leader.
//
// Each node owns its own substore.MemoryStore, replicated to every other
// joined node's store via Merge, anti-entropy style, whenever the owning
// store's own change-stream (spec.md §4.2's subscribe_changes()) fires —
// the same mechanism a real deployment would use to ship LWW writes across
// the wire, rather than nodes trivially sharing one in-memory store.
type Cluster struct {
	mu    sync.RWMutex
	nodes map[string]*member
}

// New returns an empty Cluster. Call Join to register each node's Registry
// once it has been constructed.
func New() *Cluster {
	return &Cluster{nodes: make(map[string]*member)}
}

// Join registers node's Registry and its backing subscription store with
// the cluster, and starts replicating subs's writes to every other member
// already joined (and theirs to it).
func (c *Cluster) Join(node string, r *registry.Registry, subs *substore.MemoryStore) {
	c.mu.Lock()
	c.nodes[node] = &member{reg: r, subs: subs}
	c.mu.Unlock()

	subs.Subscribe(func(change substore.Change) {
		c.replicate(node, subs, change)
	})
}

// replicate forwards one change-stream event from origin's store to every
// other joined node's store via Merge, carrying origin's logical clock
// value for the affected record so LWW resolution on the peer matches what
// origin itself would compute.
func (c *Cluster) replicate(origin string, originSubs *substore.MemoryStore, change substore.Change) {
	c.mu.RLock()
	peers := make([]*member, 0, len(c.nodes))
	for node, m := range c.nodes {
		if node != origin {
			peers = append(peers, m)
		}
	}
	c.mu.RUnlock()

	version := originSubs.Version(change.ID)

	if change.Delete {
		for _, p := range peers {
			p.subs.Merge(change.ID, nil, true, version)
		}
		return
	}

	set, err := originSubs.Get(change.ID)
	if err != nil {
		return
	}
	for _, p := range peers {
		p.subs.Merge(change.ID, set, false, version)
	}
}

// IsReady implements cluster.Oracle. The simulated cluster is always ready
// once at least one node has joined.
func (c *Cluster) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.nodes) > 0
}

// Nodes implements cluster.Oracle.
func (c *Cluster) Nodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.nodes))
	for n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// PublishToRemote implements cluster.RemotePublisher by calling Publish
// in-process on the target node's Registry.
func (c *Cluster) PublishToRemote(_ context.Context, node string, msg cluster.PublishMessage) error {
	target := c.node(node)
	if target == nil {
		return nil
	}

	return target.Publish(true, registry.PublishMessage{
		Mountpoint: msg.Mountpoint,
		RoutingKey: msg.RoutingKey,
		Payload:    msg.Payload,
		QOS:        msg.QOS,
		Retain:     msg.Retain,
	})
}

// MigrateSession implements cluster.MigrateCaller by calling MigrateSession
// in-process on the target node's Registry.
func (c *Cluster) MigrateSession(_ context.Context, node string, id subscriber.ID, localHandle queue.Handle) error {
	target := c.node(node)
	if target == nil {
		return nil
	}

	return target.MigrateSession(id, localHandle)
}

func (c *Cluster) node(name string) *registry.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.nodes[name]
	if !ok {
		return nil
	}
	return m.reg
}

// Leader implements cluster.RegisterLeader for one specific node, always
// serializing onto that node — a single-leader-per-test-fixture stand-in
// for a real cluster-wide election (spec.md §9's register_leader note;
// Non-goals excludes leader election internals).
type Leader struct {
	Node string
	Home *registry.Registry
}

// RegisterSubscriber implements cluster.RegisterLeader by always running
// register_subscriber_ on Home, regardless of the caller's own node.
func (l Leader) RegisterSubscriber(ctx context.Context, ref session.Ref, id subscriber.ID, cleanSession bool) (queue.Handle, error) {
	return l.Home.RegisterSubscriberLocal(ctx, ref, id, cleanSession)
}
