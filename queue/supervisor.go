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

import "github.com/qingcloudhx/mqreg/subscriber"

// Supervisor lazily materializes queue actors. Per spec.md §4.4,
// idempotence is NOT its job — the caller (the registry coordinator)
// guarantees single-flight per subscriber.ID.
type Supervisor interface {
	// StartQueue always creates a fresh queue, regardless of whether one
	// already exists for id.
	StartQueue(id subscriber.ID) (Handle, error)
}

// MemorySupervisor creates in-memory queues bounded by MaxQueued.
type MemorySupervisor struct {
	MaxQueued int
}

// NewMemorySupervisor returns a Supervisor bounding new queues at maxQueued
// messages, the max_queued_messages configuration value of spec.md §6.
func NewMemorySupervisor(maxQueued int) *MemorySupervisor {
	return &MemorySupervisor{MaxQueued: maxQueued}
}

// StartQueue implements Supervisor.
func (s *MemorySupervisor) StartQueue(_ subscriber.ID) (Handle, error) {
	return newMemQueue(s.MaxQueued), nil
}
