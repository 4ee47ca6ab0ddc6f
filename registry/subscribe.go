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
	"github.com/qingcloudhx/mqreg/admission"
	"github.com/qingcloudhx/mqreg/event"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/retained"
	"github.com/qingcloudhx/mqreg/subscriber"
	"github.com/qingcloudhx/mqreg/substore"
)

// Topic is one (topic, qos) pair requested by a subscribe/unsubscribe call.
type Topic struct {
	Name string
	QOS  byte
}

// Subscribe implements the subscribe engine of spec.md §4.6. tradeConsistency
// bypasses the cluster-readiness check; user identifies the caller to the
// auth chain.
func (r *Registry) Subscribe(tradeConsistency bool, user string, id subscriber.ID, topics []Topic) error {
	if !tradeConsistency && !r.ready() {
		return ErrNotReady
	}

	tuples := make([]substore.Tuple, len(topics))
	for i, t := range topics {
		tuples[i] = substore.Tuple{Topic: t.Name, QOS: t.QOS, OwnerNode: r.thisNode}
	}

	allowed, err := r.authChain.Run(user, id, tuples)
	if err != nil {
		return ErrNotAllowed
	}

	err = admission.DoErr(r.subGate, func() error {
		current, err := r.subs.Get(id)
		if err != nil {
			return err
		}

		merged := current.Clone()
		for _, t := range allowed {
			merged[substore.Tuple{Topic: t.Topic, QOS: t.QOS, OwnerNode: r.thisNode}] = struct{}{}
		}

		return r.subs.Put(id, merged)
	})
	if err != nil {
		return r.translateAdmissionErr(err)
	}

	// routing-index maintenance happens off subs's own change-stream
	// (registry.applyChangeToRoutes), not here, so a remote LWW write
	// applied via Merge keeps every node's routing index in sync the same
	// way this local Put does.

	r.logEvent(SubscriptionChanged, id, nil)

	if qh, herr := r.sessions.GetQueue(id); herr == nil {
		if handle, ok := qh.(queue.Handle); ok {
			for _, t := range allowed {
				r.replayRetained(id, handle, t.Topic, t.QOS)
			}
		}
	}

	evtTopics := make([]event.Topic, len(allowed))
	for i, t := range allowed {
		evtTopics[i] = event.Topic{Name: t.Topic, QOS: t.QOS}
	}
	r.eventChain.Fire(user, id, evtTopics, func(err error) {
		r.logEvent(SubscriptionChanged, id, err)
	})

	if r.met != nil {
		for _, t := range allowed {
			r.met.SubscriptionCount.WithLabelValues(t.Topic).Inc()
		}
		if n, err := r.subs.Size(); err == nil {
			r.met.TotalSubscribed.Set(float64(n))
		}
	}

	return nil
}

// replayRetained implements spec.md §4.6.1: enqueue a synthetic retained
// message for every retained record matching the just-subscribed filter.
func (r *Registry) replayRetained(id subscriber.ID, handle queue.Handle, filter string, qos byte) {
	if r.retain == nil {
		return
	}

	_ = r.retain.MatchFold(id.Mountpoint, filter, func(rec retained.Record) error {
		return handle.Enqueue(queue.Message{
			RoutingKey: rec.Topic,
			Payload:    rec.Payload,
			QOS:        qos,
			Retain:     true,
			Dup:        false,
		})
	})
}

// Unsubscribe implements spec.md §4.6's unsubscribe.
func (r *Registry) Unsubscribe(tradeConsistency bool, user string, id subscriber.ID, topics []string) error {
	if !tradeConsistency && !r.ready() {
		return ErrNotReady
	}

	remove := make(map[string]bool, len(topics))
	for _, t := range topics {
		remove[t] = true
	}

	err := admission.DoErr(r.subGate, func() error {
		current, err := r.subs.Get(id)
		if err != nil {
			return err
		}

		kept := current.Clone()
		for t := range kept {
			if t.OwnerNode == r.thisNode && remove[t.Topic] {
				delete(kept, t)
			}
		}

		return r.subs.Put(id, kept)
	})
	if err != nil {
		return r.translateAdmissionErr(err)
	}

	// routing-index maintenance happens off subs's own change-stream; see
	// the matching comment in Subscribe.

	r.logEvent(SubscriptionChanged, id, nil)

	evtTopics := make([]event.Topic, len(topics))
	for i, t := range topics {
		evtTopics[i] = event.Topic{Name: t}
	}
	r.eventChain.Fire(user, id, evtTopics, func(err error) {
		r.logEvent(SubscriptionChanged, id, err)
	})

	if r.met != nil {
		for _, t := range topics {
			r.met.SubscriptionCount.WithLabelValues(t).Dec()
		}
		if n, err := r.subs.Size(); err == nil {
			r.met.TotalSubscribed.Set(float64(n))
		}
	}

	return nil
}

// DeleteSubscriptions implements spec.md §4.6's delete_subscriptions: no
// auth, no events, a plain tombstone.
func (r *Registry) DeleteSubscriptions(id subscriber.ID) error {
	return r.subs.Delete(id)
}
