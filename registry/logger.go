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
	"os"

	"github.com/rs/zerolog"

	"github.com/qingcloudhx/mqreg/subscriber"
)

// Event is one notable occurrence a Logger may record. Grounded on the
// teacher's broker.LogEvent enum (referenced by
// cmd/gomqtt-membroker/main.go's backend.Logger callback), generalized
// from broker/client lifecycle events to registry ones.
type Event int

const (
	_ Event = iota

	// QueueCreated fires when exclusive-mode registration (register_subscriber_)
	// materializes a fresh queue on this node. Multi-session registration
	// does not fire it.
	QueueCreated

	// QueueDied fires when the coordinator observes a queue-death
	// notification and evicts the session row.
	QueueDied

	// SubscriptionChanged fires on a successful subscribe or unsubscribe.
	SubscriptionChanged

	// RemotePublishFailed fires when a fan-out RPC to a remote node fails;
	// per spec.md §4.7/§7 this is logged and swallowed, never surfaced.
	RemotePublishFailed

	// MigrationFailed fires when a peer RPC during register_subscriber_
	// step 3 fails or times out; per spec.md §5 this is logged, non-fatal.
	MigrationFailed
)

// Logger observes registry events. The default implementation logs
// structured output via zerolog; callers may substitute their own, the
// same way the teacher's broker.Backend exposes a raw Logger func field
// instead of a fixed logging library.
type Logger func(event Event, id subscriber.ID, err error)

// NewZerologLogger returns the default Logger, writing structured,
// leveled output to stderr via github.com/rs/zerolog — carried in from the
// wider example pack (cuemby/warren uses zerolog as the ambient logging
// library for a comparable clustered daemon) since the teacher's own
// logging is a bare fmt.Printf in cmd/gomqtt-membroker/main.go, not a
// library this module should keep imitating for a service meant to run
// unattended in a cluster.
func NewZerologLogger() Logger {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	return func(event Event, id subscriber.ID, err error) {
		evt := log.Info()
		if err != nil {
			evt = log.Warn().Err(err)
		}

		evt.Str("subscriber", id.String()).Str("event", eventName(event)).Send()
	}
}

func eventName(e Event) string {
	switch e {
	case QueueCreated:
		return "queue_created"
	case QueueDied:
		return "queue_died"
	case SubscriptionChanged:
		return "subscription_changed"
	case RemotePublishFailed:
		return "remote_publish_failed"
	case MigrationFailed:
		return "migration_failed"
	default:
		return "unknown"
	}
}
