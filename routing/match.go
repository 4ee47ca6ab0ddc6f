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

// Package routing implements the topic-routing view described by spec.md
// §4.7/§9: a Fold over matching {subscriber_id, qos} or node tuples, backed
// by default by a topic trie ("default_reg_view: trie_view", §6).
//
// Grounded on the teacher's use of a topic trie (topic.Tree) for retained
// message lookups in broker/backend.go, generalized from exact single-level
// lookup to a full MQTT wildcard (+, #) match against multiple registered
// filters.
package routing

import "strings"

// Words splits an MQTT topic or filter on "/".
func Words(topic string) []string {
	return strings.Split(topic, "/")
}

// Matches reports whether topic name matches filter under standard MQTT
// wildcard rules: "+" matches exactly one level, "#" (only meaningful as
// the final segment) matches that level and every remaining level,
// including zero remaining levels.
func Matches(filter, topic string) bool {
	return matchWords(Words(filter), Words(topic))
}

func matchWords(filter, topic []string) bool {
	for i, seg := range filter {
		if seg == "#" {
			return true
		}

		if i >= len(topic) {
			return false
		}

		if seg != "+" && seg != topic[i] {
			return false
		}
	}

	return len(filter) == len(topic)
}
