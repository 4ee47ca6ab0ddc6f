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

// Package cluster declares the external, cluster-facing collaborators of
// spec.md §1/§6: the membership oracle, the per-subscriber registration
// leader, remote publish, and cross-node queue migration. spec.md keeps
// all four "specified only by interface" — real deployments plug in their
// own cluster transport and consensus (e.g. a Raft-backed RegisterLeader);
// package clustersim provides a single-process reference implementation
// used by this module's own tests.
package cluster

import (
	"context"

	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/session"
	"github.com/qingcloudhx/mqreg/subscriber"
)

// Oracle reports cluster membership and readiness, per spec.md §6.
type Oracle interface {
	// IsReady reports whether the cluster is ready to accept
	// trade_consistency=false operations.
	IsReady() bool

	// Nodes returns every known node id, including this node.
	Nodes() []string
}

// PublishMessage is the payload handed to a remote node during publish
// fan-out, per spec.md §4.7.
type PublishMessage struct {
	Mountpoint string
	RoutingKey string
	Payload    []byte
	QOS        byte
	Retain     bool
}

// RemotePublisher delivers a message to a remote node's matching
// subscribers. Failures are logged and swallowed by the caller
// (spec.md §4.7/§7: "fire-and-forget, no retry").
type RemotePublisher interface {
	PublishToRemote(ctx context.Context, node string, msg PublishMessage) error
}

// MigrateCaller invokes migrate_session on a remote node during
// register_subscriber_ step 3 (spec.md §4.8).
type MigrateCaller interface {
	MigrateSession(ctx context.Context, node string, id subscriber.ID, localHandle queue.Handle) error
}

// RegisterLeader serializes register_subscriber_ cluster-wide for a given
// subscriber.ID onto exactly one node, per spec.md §4.8's exclusive
// registration mode.
type RegisterLeader interface {
	RegisterSubscriber(ctx context.Context, ref session.Ref, id subscriber.ID, cleanSession bool) (queue.Handle, error)
}
