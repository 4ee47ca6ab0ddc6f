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

package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/retained"
	"github.com/qingcloudhx/mqreg/routing"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/substore"
	"github.com/qingcloudhx/mqreg/subscriber"
)

func newTestRegistry(t *testing.T, node string) *Registry {
	cfg := DefaultConfig()
	r := New(node, cfg, substore.NewMemoryStore(), queue.NewMemorySupervisor(cfg.MaxQueuedMessages), retained.NewMemoryStore(), routing.NewTrie(), nil, nil, nil, nil)
	t.Cleanup(r.Close)
	return r
}

// S1. Subscribe to an empty store.
func TestSubscribeEmptyStore(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c1"))

	err := r.Subscribe(true, "u", id, []Topic{{Name: "a/b", QOS: 1}})
	require.NoError(t, err)

	set, err := r.subs.Get(id)
	require.NoError(t, err)
	assert.Contains(t, set, substore.Tuple{Topic: "a/b", QOS: 1, OwnerNode: "n1"})
}

// S2. Two parallel subscribes for the same id to disjoint topics merge.
func TestSubscribeParallelMerge(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c2"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = r.Subscribe(true, "u", id, []Topic{{Name: "x", QOS: 0}})
	}()
	go func() {
		defer wg.Done()
		_ = r.Subscribe(true, "u", id, []Topic{{Name: "y", QOS: 1}})
	}()
	wg.Wait()

	set, err := r.subs.Get(id)
	require.NoError(t, err)
	assert.Contains(t, set, substore.Tuple{Topic: "x", QOS: 0, OwnerNode: "n1"})
	assert.Contains(t, set, substore.Tuple{Topic: "y", QOS: 1, OwnerNode: "n1"})
}

// S3. Publish retained then subscribe replays it.
func TestSubscribeReplaysRetained(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c3"))

	require.NoError(t, r.Publish(true, PublishMessage{RoutingKey: "t", Payload: []byte("P"), Retain: true}))

	_, err := r.RegisterSubscriber(context.Background(), "ref", id, true, false, false)
	require.NoError(t, err)

	require.NoError(t, r.Subscribe(true, "u", id, []Topic{{Name: "t", QOS: 1}}))

	handle, err := r.sessions.GetQueue(id)
	require.NoError(t, err)
	h := handle.(queue.Handle)
	assert.Equal(t, 1, h.Status().QueuedCount)
}

// Unsubscribe removes only this node's tuples for the named topics.
func TestUnsubscribeRemovesOwnTuplesOnly(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c4"))

	require.NoError(t, r.subs.Put(id, substore.NewSet(
		substore.Tuple{Topic: "a", QOS: 0, OwnerNode: "n1"},
		substore.Tuple{Topic: "a", QOS: 0, OwnerNode: "n2"},
	)))

	require.NoError(t, r.Unsubscribe(true, "u", id, []string{"a"}))

	set, err := r.subs.Get(id)
	require.NoError(t, err)
	assert.NotContains(t, set, substore.Tuple{Topic: "a", QOS: 0, OwnerNode: "n1"})
	assert.Contains(t, set, substore.Tuple{Topic: "a", QOS: 0, OwnerNode: "n2"})
}

// P3/S4-ish. delete_subscriptions tombstones, register with clean=true
// produces a fresh queue.
func TestDeleteSubscriptionsThenCleanRegister(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c5"))

	require.NoError(t, r.Subscribe(true, "u", id, []Topic{{Name: "a", QOS: 0}}))
	require.NoError(t, r.DeleteSubscriptions(id))

	set, err := r.subs.Get(id)
	require.NoError(t, err)
	assert.Empty(t, set)

	handle, err := r.RegisterSubscriberLocal(context.Background(), "ref", id, true)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID())
}

// P7/P8. Retain dispatch: empty payload deletes, non-empty stores and fans
// out with retain=false.
func TestPublishRetainDispatch(t *testing.T) {
	r := newTestRegistry(t, "n1")

	require.NoError(t, r.Publish(true, PublishMessage{RoutingKey: "t", Payload: []byte("v"), Retain: true}))
	n, err := r.retain.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.Publish(true, PublishMessage{RoutingKey: "t", Payload: nil, Retain: true}))
	n, err = r.retain.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// P9/S6. trade_consistency=false with a not-ready oracle returns NotReady
// and has no side effects.
func TestPublishNotReadyNoSideEffects(t *testing.T) {
	r := newTestRegistry(t, "n1")
	r.oracle = notReadyOracle{}

	err := r.Publish(false, PublishMessage{RoutingKey: "t", Payload: []byte("v"), Retain: true})
	assert.ErrorIs(t, err, ErrNotReady)

	n, _ := r.retain.Size()
	assert.Equal(t, 0, n)
}

func TestSubscribeNotReady(t *testing.T) {
	r := newTestRegistry(t, "n1")
	r.oracle = notReadyOracle{}

	id := subscriber.New("", []byte("c6"))
	err := r.Subscribe(false, "u", id, []Topic{{Name: "a", QOS: 0}})
	assert.ErrorIs(t, err, ErrNotReady)
}

// Multi-session registration shares one queue across two refs.
func TestRegisterMultiSessionSharesQueue(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c7"))

	h1, err := r.RegisterSubscriber(context.Background(), "ref1", id, false, true, true)
	require.NoError(t, err)
	h2, err := r.RegisterSubscriber(context.Background(), "ref2", id, false, true, true)
	require.NoError(t, err)

	assert.Equal(t, h1.ID(), h2.ID())
	assert.ElementsMatch(t, []any{"ref1", "ref2"}, h1.GetSessions())
}

func TestClientStatsAndTotals(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c8"))

	require.NoError(t, r.Subscribe(true, "u", id, []Topic{{Name: "a", QOS: 0}}))
	_, err := r.RegisterSubscriber(context.Background(), "ref", id, false, false, false)
	require.NoError(t, err)

	stats := r.ClientStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, r.TotalSessions())

	total, err := r.TotalSubscriptions()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestFoldSubscribersClassifiesLocalVsRemote(t *testing.T) {
	r := newTestRegistry(t, "n1")
	id := subscriber.New("", []byte("c9"))

	require.NoError(t, r.subs.Put(id, substore.NewSet(
		substore.Tuple{Topic: "a", QOS: 0, OwnerNode: "n1"},
		substore.Tuple{Topic: "b", QOS: 0, OwnerNode: "n2"},
	)))

	var local, remote int
	require.NoError(t, r.FoldSubscribers(func(target SubscriberTarget) error {
		if target.Local {
			local++
		} else {
			remote++
		}
		return nil
	}))

	assert.Equal(t, 1, local)
	assert.Equal(t, 1, remote)
}

// S4. Exclusive-mode registration goes through the configured
// cluster.RegisterLeader rather than registering locally.
func TestRegisterSubscriberExclusiveInvokesLeader(t *testing.T) {
	r := newTestRegistry(t, "n1")

	var calls int32
	r.leader = recordingLeader{calls: &calls, home: r}

	id := subscriber.New("", []byte("c11"))
	handle, err := r.RegisterSubscriber(context.Background(), "ref", id, true, false, false)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type recordingLeader struct {
	calls *int32
	home  *Registry
}

func (l recordingLeader) RegisterSubscriber(ctx context.Context, ref session.Ref, id subscriber.ID, cleanSession bool) (queue.Handle, error) {
	atomic.AddInt32(l.calls, 1)
	return l.home.RegisterSubscriberLocal(ctx, ref, id, cleanSession)
}

type notReadyOracle struct{}

func (notReadyOracle) IsReady() bool   { return false }
func (notReadyOracle) Nodes() []string { return []string{"n1"} }
