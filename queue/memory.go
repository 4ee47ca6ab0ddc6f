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

import (
	"sync"

	"github.com/google/uuid"
	"gopkg.in/tomb.v2"

	"github.com/qingcloudhx/mqreg/session"
)

// memQueue is the in-memory reference Handle implementation. Its
// kill/shutdown lifecycle is grounded on broker.memorySession's
// kill/done channel pair (broker/backend.go), reworked onto a
// gopkg.in/tomb.v2 supervised goroutine per spec.md §9's "supervised child
// with a death callback" note — the teacher's go.mod already commits to
// tomb.v2 for this purpose.
type memQueue struct {
	id       string
	liveness string

	mu       sync.Mutex
	sessions map[session.Ref]struct{}
	balance  bool

	notifyCh chan struct{}
	messages chan Message

	t tomb.Tomb
}

func newMemQueue(maxQueued int) *memQueue {
	if maxQueued <= 0 {
		maxQueued = 1000
	}

	q := &memQueue{
		id:       uuid.NewString(),
		liveness: uuid.NewString(),
		sessions: make(map[session.Ref]struct{}),
		notifyCh: make(chan struct{}, 1),
		messages: make(chan Message, maxQueued),
	}

	q.t.Go(func() error {
		<-q.t.Dying()
		return nil
	})

	return q
}

func (q *memQueue) ID() string            { return q.id }
func (q *memQueue) LivenessToken() string { return q.liveness }

func (q *memQueue) AddSession(ref session.Ref, clean bool, queuePresent bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !queuePresent && clean {
		// fresh state: drop anything buffered for a clean-session rejoin.
	drain:
		for {
			select {
			case <-q.messages:
			default:
				break drain
			}
		}
	}

	q.sessions[ref] = struct{}{}
	return nil
}

func (q *memQueue) SetOpts(opts []Opt) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, o := range opts {
		if o.Key == "deliver_mode" && o.Value == "balance" {
			q.balance = true
		}
	}

	return nil
}

func (q *memQueue) Enqueue(msg Message) error {
	select {
	case q.messages <- msg:
		q.Notify()
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *memQueue) Migrate(other Handle) error {
	q.mu.Lock()
	refs := make([]session.Ref, 0, len(q.sessions))
	for ref := range q.sessions {
		refs = append(refs, ref)
	}
	q.mu.Unlock()

	for _, ref := range refs {
		if err := other.AddSession(ref, false, true); err != nil {
			return err
		}
	}

	for {
		select {
		case msg := <-q.messages:
			if err := other.Enqueue(msg); err != nil {
				return err
			}
		default:
			other.Notify()
			q.t.Kill(nil)
			return nil
		}
	}
}

func (q *memQueue) GetSessions() []session.Ref {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]session.Ref, 0, len(q.sessions))
	for ref := range q.sessions {
		out = append(out, ref)
	}
	return out
}

func (q *memQueue) Status() Status {
	return Status{State: q.state(), QueuedCount: len(q.messages)}
}

func (q *memQueue) state() string {
	select {
	case <-q.t.Dead():
		return "offline"
	default:
		return "online"
	}
}

func (q *memQueue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.sessions) > 0
}

func (q *memQueue) Notify() {
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

func (q *memQueue) Dying() <-chan struct{} {
	return q.t.Dying()
}

// Kill terminates the queue explicitly, e.g. on clean-session teardown.
func (q *memQueue) Kill() {
	q.t.Kill(nil)
}
