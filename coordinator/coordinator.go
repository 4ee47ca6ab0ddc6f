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

// Package coordinator implements the single-writer actor of spec.md §4.5:
// it owns the session table and is the only component that mutates it.
// Grounded on the teacher's broker.Engine accept-loop shape
// (cmd/gomqtt-membroker/main.go's engine.Accept/OnError wiring) and on
// spec.md §9's "dedicated task consuming a command channel" design note.
package coordinator

import (
	"time"

	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/subscriber"
)

type ensureQueueCmd struct {
	id    subscriber.ID
	ref   session.Ref
	clean bool
	reply chan ensureQueueResult
}

type ensureQueueResult struct {
	handle queue.Handle
	err    error
}

type deathCmd struct {
	handle   queue.Handle
	liveness string
}

// Coordinator serializes every write to a session.Table. Construct with
// New and start the run loop with Run in its own goroutine.
type Coordinator struct {
	table      *session.Table
	supervisor queue.Supervisor

	cmds chan any
	quit chan struct{}
	done chan struct{}

	onDeath func(subscriber.ID)
}

// New returns a Coordinator writing to table and materializing queues via
// supervisor. Call Run to start serving requests.
func New(table *session.Table, supervisor queue.Supervisor) *Coordinator {
	return &Coordinator{
		table:      table,
		supervisor: supervisor,
		cmds:       make(chan any),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run serves requests until Close is called. It must run in its own
// goroutine; it is the only goroutine allowed to mutate the session table.
func (c *Coordinator) Run() {
	defer close(c.done)

	for {
		select {
		case cmd := <-c.cmds:
			c.handle(cmd)
		case <-c.quit:
			return
		}
	}
}

// Close stops the run loop and waits for it to return.
func (c *Coordinator) Close() {
	close(c.quit)
	<-c.done
}

// OnDeath installs a callback invoked, from the Run goroutine, once per
// subscriber.ID whose last row a queue-death notification just evicted.
// Must be called before Run starts. Used by package registry to fire its
// QueueDied event, which otherwise has no path back from the table.
func (c *Coordinator) OnDeath(f func(subscriber.ID)) {
	c.onDeath = f
}

func (c *Coordinator) handle(cmd any) {
	switch v := cmd.(type) {
	case ensureQueueCmd:
		v.reply <- c.ensureQueue(v)
	case deathCmd:
		emptied := c.table.RemoveByHandle(v.handle, v.liveness)
		if c.onDeath != nil {
			for _, id := range emptied {
				c.onDeath(id)
			}
		}
	}
}

// ensureQueue implements spec.md §4.5's ensure_queue: if the table already
// has a row for id, reply with its handle; otherwise start a fresh queue,
// install the liveness watch, and insert the row. Running only inside the
// single Run goroutine is what makes two concurrent EnsureQueue callers for
// the same id single-flight (P4): they are serialized onto this channel.
func (c *Coordinator) ensureQueue(v ensureQueueCmd) ensureQueueResult {
	if qh, err := c.table.GetQueue(v.id); err == nil {
		existing := qh.(queue.Handle)
		c.table.Insert(v.id, session.Row{
			Ref:      v.ref,
			Queue:    existing,
			Liveness: livenessOf(c.table, v.id, existing),
			LastSeen: time.Now().Unix(),
			Clean:    v.clean,
		})
		return ensureQueueResult{handle: existing}
	}

	handle, err := c.supervisor.StartQueue(v.id)
	if err != nil {
		return ensureQueueResult{err: err}
	}

	c.watch(handle)

	row := session.Row{
		Ref:      v.ref,
		Queue:    handle,
		Liveness: handle.LivenessToken(),
		LastSeen: time.Now().Unix(),
		Clean:    v.clean,
	}
	c.table.Insert(v.id, row)

	return ensureQueueResult{handle: handle}
}

// watch starts the context-bound goroutine of spec.md §9's "Liveness
// monitoring" note: it posts a deathCmd to the coordinator when handle
// terminates.
func (c *Coordinator) watch(handle queue.Handle) {
	token := handle.LivenessToken()

	go func() {
		<-handle.Dying()

		select {
		case c.cmds <- deathCmd{handle: handle, liveness: token}:
		case <-c.quit:
		}
	}()
}

// livenessOf looks up the liveness token already recorded for an existing
// handle, so that a second EnsureQueue call for the same id inserts a row
// carrying the same token as the first (I1: identical handle across rows).
func livenessOf(table *session.Table, id subscriber.ID, handle queue.Handle) string {
	for _, r := range table.Rows(id) {
		if r.Queue == handle {
			return r.Liveness
		}
	}
	return handle.LivenessToken()
}

// EnsureQueue implements spec.md §4.5's ensure_queue(id) -> handle.
func (c *Coordinator) EnsureQueue(id subscriber.ID, ref session.Ref, clean bool) (queue.Handle, error) {
	reply := make(chan ensureQueueResult, 1)

	select {
	case c.cmds <- ensureQueueCmd{id: id, ref: ref, clean: clean, reply: reply}:
	case <-c.quit:
		return nil, ErrClosed
	}

	res := <-reply
	return res.handle, res.err
}

// ErrClosed is returned by EnsureQueue after Close.
var ErrClosed = errClosed{}

type errClosed struct{}

func (errClosed) Error() string { return "coordinator: closed" }
