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

// Command registryd runs a single registry node backed by in-memory
// collaborators, printing periodic stats the way cmd/gomqtt-membroker prints
// publish/forward rates.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/qingcloudhx/mqreg/clustersim"
	"github.com/qingcloudhx/mqreg/metrics"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/registry"
	"github.com/qingcloudhx/mqreg/retained"
	"github.com/qingcloudhx/mqreg/routing"
	"github.com/qingcloudhx/mqreg/subscriber"
	"github.com/qingcloudhx/mqreg/substore"
)

var node = flag.String("node", "node-1", "this node's cluster id")
var maxQueued = flag.Int("max-queued", 1000, "max queued messages per subscriber")
var tradeConsistency = flag.Bool("trade-consistency", false, "skip the cluster-readiness gate")

func main() {
	flag.Parse()

	fmt.Printf("Starting registry node %q... ", *node)

	cfg := registry.DefaultConfig()
	cfg.MaxQueuedMessages = *maxQueued
	cfg.TradeConsistency = *tradeConsistency

	sim := clustersim.New()
	subs := substore.NewMemoryStore()

	reg := registry.New(*node, cfg, subs, queue.NewMemorySupervisor(cfg.MaxQueuedMessages), retained.NewMemoryStore(), routing.NewTrie(), sim, nil, sim, sim)
	reg = reg.WithMetrics(metrics.New(nil))
	reg = reg.WithLeader(clustersim.Leader{Node: *node, Home: reg})
	sim.Join(*node, reg, subs)

	fmt.Println("Done!")

	var subscribed atomic.Int64
	reg = reg.WithLogger(func(event registry.Event, id subscriber.ID, err error) {
		if event == registry.SubscriptionChanged {
			subscribed.Add(1)
		}
	})

	go func() {
		for {
			<-time.After(1 * time.Second)

			n := subscribed.Swap(0)
			stats := reg.ClientStats()
			fmt.Printf("Subscription events: %d/s, Sessions: %d (active %d, inactive %d)\n", n, stats.Total, stats.Active, stats.Inactive)
		}
	}()

	finish := make(chan os.Signal, 1)
	signal.Notify(finish, syscall.SIGINT, syscall.SIGTERM)
	<-finish

	reg.Close()

	fmt.Println("Bye!")
}
