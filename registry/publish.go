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

	"github.com/qingcloudhx/mqreg/admission"
	"github.com/qingcloudhx/mqreg/cluster"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/routing"
	"github.com/qingcloudhx/mqreg/subscriber"
)

// PublishMessage is the input to Publish, per spec.md §4.7.
type PublishMessage struct {
	Mountpoint string
	RoutingKey string
	Payload    []byte
	QOS        byte
	Retain     bool
}

// Publish implements the dispatch table of spec.md §4.7.
func (r *Registry) Publish(tradeConsistency bool, msg PublishMessage) error {
	ready := r.ready()
	if !tradeConsistency && !ready {
		return ErrNotReady
	}

	if msg.Retain {
		if len(msg.Payload) == 0 {
			if r.retain != nil {
				err := admission.DoErr(r.retainGate, func() error {
					return r.retain.Delete(msg.Mountpoint, msg.RoutingKey)
				})
				if err != nil {
					return r.translateAdmissionErr(err)
				}
			}
			if r.met != nil {
				r.met.Retained.Set(float64(r.retainedSize()))
			}
			return nil
		}

		if r.retain != nil {
			err := admission.DoErr(r.retainGate, func() error {
				return r.retain.Insert(msg.Mountpoint, msg.RoutingKey, msg.Payload)
			})
			if err != nil {
				return r.translateAdmissionErr(err)
			}
		}

		if r.met != nil {
			r.met.Retained.Set(float64(r.retainedSize()))
		}

		fanMsg := msg
		fanMsg.Retain = false
		return r.fanOut(fanMsg)
	}

	return r.fanOut(msg)
}

func (r *Registry) retainedSize() int {
	if r.retain == nil {
		return 0
	}
	n, _ := r.retain.Size()
	return n
}

// fanOut implements spec.md §4.7's reg_view.fold dispatch: local subscribers
// are delivered to directly via the session table; remote nodes are
// contacted via the cluster.RemotePublisher collaborator, fire-and-forget.
func (r *Registry) fanOut(msg PublishMessage) error {
	if r.routes == nil {
		return nil
	}

	return r.routes.Fold(msg.Mountpoint, msg.RoutingKey, r.thisNode, func(item routing.Item) error {
		if item.Local {
			r.deliverLocal(item.ID, item.QOS, msg)
			return nil
		}

		r.deliverRemote(item.Node, msg)
		return nil
	})
}

func (r *Registry) deliverLocal(id subscriber.ID, qos byte, msg PublishMessage) {
	qh, err := r.sessions.GetQueue(id)
	if err != nil {
		// not found: the subscriber is on another node, or was just torn
		// down; spec.md §4.7 calls for a silent drop here.
		return
	}

	handle, ok := qh.(queue.Handle)
	if !ok {
		return
	}

	_ = handle.Enqueue(queue.Message{
		RoutingKey: msg.RoutingKey,
		Payload:    msg.Payload,
		QOS:        qos,
		Retain:     msg.Retain,
		Dup:        false,
	})
}

func (r *Registry) deliverRemote(node string, msg PublishMessage) {
	if r.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout())
	defer cancel()

	err := r.publisher.PublishToRemote(ctx, node, cluster.PublishMessage{
		Mountpoint: msg.Mountpoint,
		RoutingKey: msg.RoutingKey,
		Payload:    msg.Payload,
		QOS:        msg.QOS,
		Retain:     msg.Retain,
	})
	if err != nil {
		r.logEvent(RemotePublishFailed, subscriber.ID{Mountpoint: msg.Mountpoint}, err)
	}
}
