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

package queue

import "github.com/qingcloudhx/mqreg/session"

// Opt is one {key, value} pair of SetOpts, e.g. {"deliver_mode", "balance"}.
type Opt struct {
	Key   string
	Value any
}

// Status summarizes a queue's runtime state for introspection.
type Status struct {
	State       string
	QueuedCount int
}

// Handle is the reference to a per-subscriber queue actor, per spec.md
// §4.4. It satisfies session.QueueHandle so it can live inside a
// session.Row without an import cycle.
type Handle interface {
	// ID uniquely identifies this queue instance; session.Table compares
	// handles by identity via this id.
	ID() string

	// AddSession attaches a session front-end to this queue.
	AddSession(ref session.Ref, clean bool, queuePresent bool) error

	// SetOpts updates delivery options, e.g. enabling round-robin balancing
	// across multiple attached sessions.
	SetOpts(opts []Opt) error

	// Enqueue buffers msg for delivery. Returns ErrQueueFull if the queue's
	// bound (max_queued_messages) has been reached.
	Enqueue(msg Message) error

	// Migrate transfers this queue's buffered messages and session
	// references into other, then terminates this queue.
	Migrate(other Handle) error

	// GetSessions returns the session refs currently attached.
	GetSessions() []session.Ref

	// Status reports the queue's runtime state and queued depth.
	Status() Status

	// Active reports whether the queue currently has at least one attached
	// session.
	Active() bool

	// Notify wakes up anything waiting on this queue's delivery loop; used
	// after Migrate or AddSession to prompt immediate redelivery.
	Notify()

	// Dying returns a channel that is closed when the queue actor has
	// terminated, either via Migrate or an explicit Kill. The registry
	// coordinator watches this channel to evict the session table row
	// (spec.md §9 "Liveness monitoring").
	Dying() <-chan struct{}

	// LivenessToken returns the nonce that must match the session table
	// row's Liveness field for a death notification to be honored —
	// prevents a stale notification from evicting a freshly restarted row.
	LivenessToken() string
}

// ErrQueueFull is returned by Enqueue when the queue's bound has been
// reached. Grounded on the teacher's own broker.ErrQueueFull
// (broker/backend.go), same name and meaning, generalized from a
// backend-wide error to a per-queue one.
var ErrQueueFull = errQueueFull{}

type errQueueFull struct{}

func (errQueueFull) Error() string { return "queue full" }
