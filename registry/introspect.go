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
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/substore"
	"github.com/qingcloudhx/mqreg/subscriber"
)

// ClientStats is the result of client_stats, spec.md §4.9.
type ClientStats struct {
	Total    int
	Active   int
	Inactive int
}

// ClientStats reports session-row counts, split by whether a row's
// liveness token is set. A row with no liveness token is "detached":
// materialized in the table but not bound to a live queue watch.
func (r *Registry) ClientStats() ClientStats {
	stats := ClientStats{}

	_ = r.sessions.Fold(func(_ subscriber.ID, rows []session.Row) error {
		for _, row := range rows {
			stats.Total++
			if row.Liveness == "" {
				stats.Inactive++
			} else {
				stats.Active++
			}
		}
		return nil
	})

	return stats
}

// TotalSessions implements spec.md §4.9's total_sessions.
func (r *Registry) TotalSessions() int {
	return r.sessions.Count()
}

// TotalSubscriptions implements spec.md §4.9's total_subscriptions.
func (r *Registry) TotalSubscriptions() (int, error) {
	return r.subs.Size()
}

// Retained implements spec.md §4.9's retained.
func (r *Registry) Retained() (int, error) {
	if r.retain == nil {
		return 0, nil
	}
	return r.retain.Size()
}

// Stored implements spec.md §4.9's stored(id): the queued depth for id's
// queue, or 0 if it has none.
func (r *Registry) Stored(id subscriber.ID) int {
	handle, err := r.sessions.GetQueue(id)
	if err != nil {
		return 0
	}

	h, ok := handle.(queue.Handle)
	if !ok {
		return 0
	}

	return h.Status().QueuedCount
}

// FoldSessions implements spec.md §4.9's fold_sessions: iterate a snapshot
// of every (id, rows) pair in the session table.
func (r *Registry) FoldSessions(f func(subscriber.ID, []session.Row) error) error {
	return r.sessions.Fold(f)
}

// SubscriberTarget is one hit yielded by FoldSubscribers: either a local
// delivery target or a remote forwarding target, per spec.md §4.9.
type SubscriberTarget struct {
	Mountpoint string
	Topic      string
	Local      bool
	ID         subscriber.ID
	QOS        byte
	Node       string
}

// FoldSubscribers implements spec.md §4.9's fold_subscribers: for every
// (topic, subscription) in the non-tombstoned subscription store, yield a
// local target when the tuple's owner is this node, else a remote
// forwarding target. Best-effort over a snapshot, per spec.md §9's
// "fold_subscribers ... concurrent deletions during a fold may miss or
// double-count" note.
func (r *Registry) FoldSubscribers(f func(SubscriberTarget) error) error {
	return r.subs.Fold(func(rec substore.Record) error {
		for t := range rec.Set {
			target := SubscriberTarget{
				Mountpoint: rec.ID.Mountpoint,
				Topic:      t.Topic,
				Local:      t.OwnerNode == r.thisNode,
				ID:         rec.ID,
				QOS:        t.QOS,
				Node:       t.OwnerNode,
			}

			if err := f(target); err != nil {
				return err
			}
		}

		return nil
	})
}
