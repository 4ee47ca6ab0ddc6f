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

// Package queue implements the per-subscriber queue actor described by
// spec.md §4.4: a lazily materialized process that buffers outbound
// messages and fans them to one or more active sessions.
package queue

// Message is what the registry enqueues; it is deliberately independent of
// any wire packet type, since MQTT wire parsing is out of scope.
type Message struct {
	RoutingKey string
	Payload    []byte
	QOS        byte
	Retain     bool
	Dup        bool
}
