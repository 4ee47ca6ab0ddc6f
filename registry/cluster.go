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
	"time"

	"github.com/qingcloudhx/mqreg/admission"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/subscriber"
	"github.com/qingcloudhx/mqreg/substore"
)

// RegisterSubscriber implements spec.md §4.8's two registration modes.
// allowMultiple and balance are the per-call flags named in spec.md §6;
// only these arguments select the mode, Config.AllowMultipleSessions and
// Config.BalanceSessions are not consulted here.
func (r *Registry) RegisterSubscriber(ctx context.Context, ref session.Ref, id subscriber.ID, cleanSession, allowMultiple, balance bool) (queue.Handle, error) {
	if allowMultiple {
		handle, err := r.coord.EnsureQueue(id, ref, false)
		if err != nil {
			return nil, err
		}

		if err := handle.AddSession(ref, false, true); err != nil {
			return nil, err
		}

		if balance {
			if err := handle.SetOpts([]queue.Opt{{Key: "deliver_mode", Value: "balance"}}); err != nil {
				return nil, err
			}
		}

		if r.met != nil {
			r.met.TotalSessions.Set(float64(r.sessions.Count()))
		}

		return handle, nil
	}

	if r.leader == nil {
		// no cluster-wide leader collaborator configured: this node is
		// trivially its own leader.
		return r.RegisterSubscriberLocal(ctx, ref, id, cleanSession)
	}

	handle, err := r.leader.RegisterSubscriber(ctx, ref, id, cleanSession)
	if err != nil {
		return nil, err
	}

	if !cleanSession {
		if err := r.RemapSubscription(id); err != nil {
			return nil, err
		}
	}

	return handle, nil
}

// RegisterSubscriberLocal implements register_subscriber_, the leader's
// action on the node that won the registration for id (spec.md §4.8).
func (r *Registry) RegisterSubscriberLocal(ctx context.Context, ref session.Ref, id subscriber.ID, cleanSession bool) (queue.Handle, error) {
	if cleanSession {
		retrier := admission.NewRetrier(r.cfg.RegisterRetryBackoff)
		if err := retrier.Until(func() error {
			return admission.DoErr(r.registerGate, func() error {
				return r.subs.Delete(id)
			})
		}); err != nil {
			return nil, r.translateAdmissionErr(err)
		}
	}

	fresh := !r.sessions.Has(id)

	handle, err := r.coord.EnsureQueue(id, ref, cleanSession)
	if err != nil {
		return nil, err
	}

	if fresh {
		r.logEvent(QueueCreated, id, nil)
	}

	r.migrateFromPeers(ctx, id, handle)

	if err := handle.AddSession(ref, cleanSession, false); err != nil {
		return nil, err
	}

	if r.met != nil {
		r.met.TotalSessions.Set(float64(r.sessions.Count()))
	}

	return handle, nil
}

// migrateFromPeers implements register_subscriber_ step 3: ask every other
// known node to migrate id's queue here, each bounded by the configured
// per-peer timeout and run concurrently. Grounded on the teacher's
// broker.MemoryBackend.Close wait-list-plus-timeout idiom rather than an
// added errgroup dependency (spec.md §5's rationale).
func (r *Registry) migrateFromPeers(ctx context.Context, id subscriber.ID, handle queue.Handle) {
	if r.migrator == nil {
		return
	}

	var wg sync.WaitGroup
	for _, node := range r.nodes() {
		if node == r.thisNode {
			continue
		}

		node := node
		wg.Add(1)
		go func() {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, r.callTimeout())
			defer cancel()

			if err := r.migrator.MigrateSession(callCtx, node, id, handle); err != nil {
				r.logEvent(MigrationFailed, id, err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.callTimeout()):
	}
}

// RemapSubscription implements spec.md §4.8's remap_subscription: every
// tuple in id's subscription record is rewritten to this_node. The
// resulting Put's diff against the prior (other-owned) tuples drives the
// routing-index update off the change-stream, the same as Subscribe and
// Unsubscribe, so the old owner's routing entries are also cleared here.
func (r *Registry) RemapSubscription(id subscriber.ID) error {
	retrier := admission.NewRetrier(r.cfg.RegisterRetryBackoff)

	err := retrier.Until(func() error {
		return admission.DoErr(r.subGate, func() error {
			current, err := r.subs.Get(id)
			if err != nil {
				return err
			}

			remapped := make(substore.Set, len(current))
			for t := range current {
				remapped[substore.Tuple{Topic: t.Topic, QOS: t.QOS, OwnerNode: r.thisNode}] = struct{}{}
			}

			return r.subs.Put(id, remapped)
		})
	})

	return r.translateAdmissionErr(err)
}

// MigrateSession is the remote endpoint invoked by a peer's
// migrateFromPeers: if this node has a live queue for id, transfer it into
// otherHandle and terminate the local one (spec.md §4.8).
func (r *Registry) MigrateSession(id subscriber.ID, otherHandle queue.Handle) error {
	local, err := r.sessions.GetQueue(id)
	if err != nil {
		return nil
	}

	localHandle, ok := local.(queue.Handle)
	if !ok {
		return nil
	}

	return localHandle.Migrate(otherHandle)
}
