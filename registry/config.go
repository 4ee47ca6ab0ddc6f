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

// Package registry wires the admission gate, subscription store, session
// table, queue supervisor and registry coordinator into the five public
// operations spec.md §1 names in scope: subscribe, unsubscribe,
// register_subscriber, publish, delete_subscriptions.
package registry

import (
	"errors"
	"time"
)

// Config holds the per-process configuration enumerated in spec.md §6.
type Config struct {
	// TradeConsistency, when true, makes subscribe/unsubscribe/publish skip
	// the cluster-readiness gate.
	TradeConsistency bool

	// MaxQueuedMessages bounds new queues (queue.Supervisor).
	MaxQueuedMessages int

	// AllowMultipleSessions and BalanceSessions select the registration
	// mode of spec.md §4.8. They are call-time flags in the spec;
	// RegisterSubscriber takes them as arguments and does not read these
	// fields.
	AllowMultipleSessions bool
	BalanceSessions       bool

	// RegisterRetryBackoff is the fixed retry step of spec.md §4.1/§4.8
	// ("retry after a fixed backoff of 100ms").
	RegisterRetryBackoff time.Duration

	// RemoteCallTimeout bounds each peer RPC during migration (spec.md §5).
	RemoteCallTimeout time.Duration

	// BucketCapacity and BucketFillInterval configure the admission gate.
	BucketCapacity     int64
	BucketFillInterval time.Duration
}

// DefaultConfig returns the configuration defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		MaxQueuedMessages:    1000,
		RegisterRetryBackoff: 100 * time.Millisecond,
		RemoteCallTimeout:    5 * time.Second,
		BucketCapacity:       1000,
		BucketFillInterval:   10 * time.Millisecond,
	}
}

// Error taxonomy, spec.md §7. Values, not types, per the spec's own
// vocabulary ("Error taxonomy (values, not types)").
var (
	// ErrNotAllowed is returned when the auth chain refuses a subscribe.
	ErrNotAllowed = errors.New("registry: not allowed")

	// ErrOverloaded is returned when the admission gate rejects a mutation.
	ErrOverloaded = errors.New("registry: overloaded")

	// ErrNotReady is returned when the cluster is not ready and
	// trade_consistency is false.
	ErrNotReady = errors.New("registry: not ready")

	// ErrNotFound names a session/queue lookup miss. The registry's own
	// lookups report misses as session.ErrNotFound, and publish fan-out
	// drops such a miss silently.
	ErrNotFound = errors.New("registry: not found")

	// ErrInvalidConfig marks a fatal plugin-export factory error.
	ErrInvalidConfig = errors.New("registry: invalid config")

	// ErrInvalidTopic marks a fatal plugin-export factory error.
	ErrInvalidTopic = errors.New("registry: invalid topic")
)
