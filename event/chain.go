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

// Package event models the best-effort event plugin chain of spec.md §6:
// "all(on_subscribe|on_unsubscribe, …)". Unlike auth.Chain, every plugin
// runs regardless of what earlier plugins did, and errors are swallowed —
// event notification never fails the calling operation.
package event

import "github.com/qingcloudhx/mqreg/subscriber"

// Topic is the minimal (topic, qos) pair an event plugin observes.
type Topic struct {
	Name string
	QOS  byte
}

// Plugin observes a subscribe/unsubscribe event. Its return value is
// ignored by Chain.Fire beyond being available to a caller-supplied error
// logger, matching the "best-effort" contract.
type Plugin func(user string, id subscriber.ID, topics []Topic) error

// Chain is a best-effort fan-out list of Plugin.
type Chain []Plugin

// Fire runs every plugin, handing any error to onErr (which may be nil).
func (c Chain) Fire(user string, id subscriber.ID, topics []Topic, onErr func(error)) {
	for _, p := range c {
		if err := p(user, id, topics); err != nil && onErr != nil {
			onErr(err)
		}
	}
}
