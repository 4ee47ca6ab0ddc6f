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

package clustersim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingcloudhx/mqreg/cluster"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/registry"
	"github.com/qingcloudhx/mqreg/retained"
	"github.com/qingcloudhx/mqreg/routing"
	"github.com/qingcloudhx/mqreg/substore"
	"github.com/qingcloudhx/mqreg/subscriber"
)

// S5: with two nodes, registering an id already hosted on node B from node
// A migrates B's queue to A, remaps the subscription record's owner_node to
// A, and a subsequent publish reaches A. Each node owns its own
// subscription store and routing index; anti-entropy replication between
// them (Cluster.replicate, driven by each store's own change-stream) is
// what keeps the two in sync, not shared memory.
func TestTwoNodeMigration(t *testing.T) {
	cfg := registry.DefaultConfig()
	retain := retained.NewMemoryStore()

	subA, subB := substore.NewMemoryStore(), substore.NewMemoryStore()
	routesA, routesB := routing.NewTrie(), routing.NewTrie()

	c := New()

	a := registry.New("A", cfg, subA, queue.NewMemorySupervisor(cfg.MaxQueuedMessages), retain, routesA, c, nil, c, c)
	b := registry.New("B", cfg, subB, queue.NewMemorySupervisor(cfg.MaxQueuedMessages), retain, routesB, c, nil, c, c)
	t.Cleanup(a.Close)
	t.Cleanup(b.Close)

	// Each node is its own register_subscriber_ leader: registration always
	// runs register_subscriber_ on the node the client connected to, the
	// same as a leaderless single-node deployment, but exercised here
	// through the public exclusive-mode RegisterSubscriber path rather than
	// the internal RegisterSubscriberLocal directly.
	a.WithLeader(Leader{Node: "A", Home: a})
	b.WithLeader(Leader{Node: "B", Home: b})

	c.Join("A", a, subA)
	c.Join("B", b, subB)

	id := subscriber.New("", []byte("c5"))

	// id is first registered and subscribed on B.
	bHandle, err := b.RegisterSubscriber(context.Background(), "ref-b", id, false, false, false)
	require.NoError(t, err)
	require.NoError(t, b.Subscribe(true, "u", id, []registry.Topic{{Name: "t", QOS: 0}}))

	// now register on A: A's queue supervisor starts a fresh queue, pulls
	// B's buffered state across via MigrateSession, then (since
	// cleanSession is false) RegisterSubscriber itself calls
	// RemapSubscription to claim ownership.
	aHandle, err := a.RegisterSubscriber(context.Background(), "ref-a", id, false, false, false)
	require.NoError(t, err)
	assert.NotEmpty(t, aHandle.ID())
	assert.NotEqual(t, bHandle.ID(), aHandle.ID())

	// the remap was written to A's own store and replicated to B's.
	for _, s := range []*substore.MemoryStore{subA, subB} {
		set, err := s.Get(id)
		require.NoError(t, err)
		require.NotEmpty(t, set)
		for tuple := range set {
			assert.Equal(t, "A", tuple.OwnerNode)
		}
	}

	// B's routing index also lost its local entry for t once ownership
	// moved to A: B's own Fold no longer reports a local hit.
	var bLocalHits int
	require.NoError(t, routesB.Fold("", "t", "B", func(it routing.Item) error {
		if it.Local {
			bLocalHits++
		}
		return nil
	}))
	assert.Zero(t, bLocalHits)

	require.NoError(t, c.PublishToRemote(context.Background(), "A", cluster.PublishMessage{
		RoutingKey: "t",
		Payload:    []byte("hello"),
	}))
}
