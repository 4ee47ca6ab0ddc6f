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

// Command registry-shell is an interactive introspection REPL over a single
// in-memory registry node, grounded on cmd/gomqtt-interactive's use of
// abiosoft/ishell to drive a client by typed command.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/qingcloudhx/mqreg/clustersim"
	"github.com/qingcloudhx/mqreg/queue"
	"github.com/qingcloudhx/mqreg/registry"
	"github.com/qingcloudhx/mqreg/retained"
	"github.com/qingcloudhx/mqreg/routing"
	"github.com/qingcloudhx/mqreg/subscriber"
	"github.com/qingcloudhx/mqreg/substore"
)

var node = flag.String("node", "node-1", "this node's cluster id")

func main() {
	flag.Parse()

	cfg := registry.DefaultConfig()
	sim := clustersim.New()
	subs := substore.NewMemoryStore()
	reg := registry.New(*node, cfg, subs, queue.NewMemorySupervisor(cfg.MaxQueuedMessages), retained.NewMemoryStore(), routing.NewTrie(), sim, nil, sim, sim)
	reg = reg.WithLeader(clustersim.Leader{Node: *node, Home: reg})
	sim.Join(*node, reg, subs)
	defer reg.Close()

	shell := ishell.New()
	shell.Println("registry-shell: " + *node)

	shell.AddCmd(&ishell.Cmd{
		Name: "subscribe",
		Help: "subscribe <mountpoint> <client_id> <topic> <qos>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 4 {
				c.Println("usage: subscribe <mountpoint> <client_id> <topic> <qos>")
				return
			}

			id := subscriber.New(c.Args[0], []byte(c.Args[1]))
			var qos byte
			fmt.Sscanf(c.Args[3], "%d", &qos)

			if _, err := reg.RegisterSubscriber(context.Background(), c.Args[1], id, true, true, false); err != nil {
				c.Println("error:", err)
				return
			}

			if err := reg.Subscribe(true, "shell", id, []registry.Topic{{Name: c.Args[2], QOS: qos}}); err != nil {
				c.Println("error:", err)
				return
			}

			c.Println("ok")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "publish",
		Help: "publish <mountpoint> <topic> <payload>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Println("usage: publish <mountpoint> <topic> <payload>")
				return
			}

			err := reg.Publish(true, registry.PublishMessage{
				Mountpoint: c.Args[0],
				RoutingKey: c.Args[1],
				Payload:    []byte(c.Args[2]),
			})
			if err != nil {
				c.Println("error:", err)
				return
			}

			c.Println("ok")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stats",
		Help: "show client/session/subscription counters",
		Func: func(c *ishell.Context) {
			stats := reg.ClientStats()
			total, _ := reg.TotalSubscriptions()
			retainedN, _ := reg.Retained()

			c.Printf("sessions: total=%d active=%d inactive=%d\n", stats.Total, stats.Active, stats.Inactive)
			c.Printf("subscriptions: %d\n", total)
			c.Printf("retained: %d\n", retainedN)
		},
	})

	shell.Run()
}
