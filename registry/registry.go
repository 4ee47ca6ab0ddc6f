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
	"errors"
	"time"

	"github.com/qingcloudhx/mqreg/admission"
	"github.com/qingcloudhx/mqreg/auth"
	"github.com/qingcloudhx/mqreg/cluster"
	"github.com/qingcloudhx/mqreg/coordinator"
	"github.com/qingcloudhx/mqreg/event"
	"github.com/qingcloudhx/mqreg/metrics"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/retained"
	"github.com/qingcloudhx/mqreg/routing"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/subscriber"
	"github.com/qingcloudhx/mqreg/substore"
)

// Registry is this node's instance of the registry core: it owns the
// node-local session table (via its Coordinator) and fronts the
// cluster-wide subscription store, the routing index and the retained
// store with an admission gate. One Registry exists per cluster node.
//
// Grounded on the teacher's broker.MemoryBackend (broker/backend.go), whose
// constructor wires together a retained-message tree, a session map and a
// queueing backend behind a single façade; generalized here from an
// in-process MQTT backend into the clustered registry core.
type Registry struct {
	thisNode string
	cfg      Config

	subGate      *admission.Gate
	retainGate   *admission.Gate
	registerGate *admission.Gate

	subs     substore.Store
	sessions *session.Table
	coord    *coordinator.Coordinator
	routes   routing.Index
	retain   retained.Store

	authChain  auth.Chain
	eventChain event.Chain

	oracle    cluster.Oracle
	leader    cluster.RegisterLeader
	publisher cluster.RemotePublisher
	migrator  cluster.MigrateCaller

	log Logger
	met *metrics.Metrics

	unsubscribeRoutes func()
}

// New constructs a Registry for thisNode. Any of the cluster collaborators
// may be nil for a single-node deployment; publish and register then
// operate purely locally (IsReady is treated as true, fan-out to remote
// nodes is skipped).
func New(thisNode string, cfg Config, subs substore.Store, supervisor queue.Supervisor, retain retained.Store, routes routing.Index, oracle cluster.Oracle, leader cluster.RegisterLeader, publisher cluster.RemotePublisher, migrator cluster.MigrateCaller) *Registry {
	sessions := session.New()
	coord := coordinator.New(sessions, supervisor)

	r := &Registry{
		thisNode:     thisNode,
		cfg:          cfg,
		subGate:      admission.New("subscription_store", cfg.BucketCapacity, cfg.BucketFillInterval),
		retainGate:   admission.New("retained_store", cfg.BucketCapacity, cfg.BucketFillInterval),
		registerGate: admission.New("register_subscriber", cfg.BucketCapacity, cfg.BucketFillInterval),
		subs:         subs,
		sessions:     sessions,
		coord:        coord,
		routes:       routes,
		retain:       retain,
		oracle:       oracle,
		leader:       leader,
		publisher:    publisher,
		migrator:     migrator,
		log:          NewZerologLogger(),
	}

	// QueueDied: the coordinator is the only goroutine that learns of a
	// queue death (it owns the session table); route it back here so the
	// event actually fires instead of just evicting the row silently.
	coord.OnDeath(func(id subscriber.ID) {
		r.logEvent(QueueDied, id, nil)
		if r.met != nil {
			r.met.TotalSessions.Set(float64(r.sessions.Count()))
		}
	})

	// Routing-index maintenance is driven off the subscription store's own
	// change-stream (spec.md §4.2's subscribe_changes()) rather than
	// imperative Insert/Remove calls at each write site, so a remote LWW
	// write applied via Merge keeps this node's routing index in sync the
	// same way a local Put/Delete does.
	if sub, ok := subs.(substore.Subscribable); ok {
		r.unsubscribeRoutes = sub.Subscribe(func(c substore.Change) {
			applyChangeToRoutes(r.routes, c)
		})
	}

	go coord.Run()

	return r
}

// applyChangeToRoutes folds one subscribe_changes() event into the routing
// index: a delete clears every topic the tombstoned record last held, an
// update removes what left the set and inserts what joined it.
func applyChangeToRoutes(routes routing.Index, c substore.Change) {
	if routes == nil {
		return
	}

	if c.Delete {
		for t := range c.Old {
			routes.Remove(c.ID.Mountpoint, t.Topic, c.ID)
		}
		return
	}

	for t := range c.Removed {
		routes.Remove(c.ID.Mountpoint, t.Topic, c.ID)
	}
	for t := range c.Added {
		routes.Insert(c.ID.Mountpoint, t.Topic, c.ID, t.QOS, t.OwnerNode)
	}
}

// WithAuthChain installs the authorization plugin chain.
func (r *Registry) WithAuthChain(chain auth.Chain) *Registry {
	r.authChain = chain
	return r
}

// WithLeader installs the cluster.RegisterLeader collaborator. Provided as
// a setter, rather than only a New parameter, because a leader
// implementation (e.g. clustersim.Leader) commonly needs to close over the
// very *Registry it is being installed on.
func (r *Registry) WithLeader(leader cluster.RegisterLeader) *Registry {
	r.leader = leader
	return r
}

// WithEventChain installs the best-effort event plugin chain.
func (r *Registry) WithEventChain(chain event.Chain) *Registry {
	r.eventChain = chain
	return r
}

// WithLogger overrides the default zerolog-backed Logger.
func (r *Registry) WithLogger(log Logger) *Registry {
	r.log = log
	return r
}

// WithMetrics installs a metrics.Metrics, exercised by every operation below.
func (r *Registry) WithMetrics(m *metrics.Metrics) *Registry {
	r.met = m
	return r
}

// Close stops the node-local coordinator. It does not close the injected
// collaborators (subs, retain, routes), which outlive a single Registry in a
// clustered deployment.
func (r *Registry) Close() {
	if r.unsubscribeRoutes != nil {
		r.unsubscribeRoutes()
	}
	r.coord.Close()
}

// ready reports whether operations gated by trade_consistency=false may
// proceed, per spec.md §4.1/§6: a nil Oracle means a single, always-ready
// node.
func (r *Registry) ready() bool {
	if r.oracle == nil {
		return true
	}
	return r.oracle.IsReady()
}

func (r *Registry) nodes() []string {
	if r.oracle == nil {
		return []string{r.thisNode}
	}
	return r.oracle.Nodes()
}

func (r *Registry) logEvent(evt Event, id subscriber.ID, err error) {
	if r.log == nil {
		return
	}
	r.log(evt, id, err)
}

func (r *Registry) callTimeout() time.Duration {
	if r.cfg.RemoteCallTimeout <= 0 {
		return 5 * time.Second
	}
	return r.cfg.RemoteCallTimeout
}

// translateAdmissionErr maps admission.ErrOverloaded onto this package's
// own ErrOverloaded, per spec.md §7's error taxonomy ("subscribe/
// unsubscribe/remap surface it"): a caller doing errors.Is(err,
// registry.ErrOverloaded) must see this package's sentinel, not
// package admission's.
func (r *Registry) translateAdmissionErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, admission.ErrOverloaded) {
		if r.met != nil {
			r.met.Overloaded.Inc()
		}
		return ErrOverloaded
	}
	return err
}
