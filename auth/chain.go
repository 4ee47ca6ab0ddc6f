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

// Package auth models the authorization plugin chain collaborator of
// spec.md §6: "auth_on_subscribe(user, id, topics) -> ok | ok(topics) |
// error", run with an all_till_ok combinator (first plugin to return a
// verdict other than "keep trying" decides the outcome).
//
// Grounded on the teacher's single-call Backend.Authenticate
// (broker/backend.go), generalized from one fixed check into a chain of
// independently pluggable authorizers.
package auth

import (
	"errors"

	"github.com/qingcloudhx/mqreg/substore"
	"github.com/qingcloudhx/mqreg/subscriber"
)

// ErrNotAllowed is returned when every plugin in the chain refuses, or when
// any plugin explicitly errors.
var ErrNotAllowed = errors.New("auth: not allowed")

// ErrNext tells the chain runner to try the next plugin; returning it from
// a Plugin means "no opinion".
var ErrNext = errors.New("auth: next")

// Plugin authorizes a subscribe request. Returning (nil, nil) accepts the
// original topics; returning (rewritten, nil) substitutes them; returning
// (nil, ErrNext) defers to the next plugin; any other error rejects.
type Plugin func(user string, id subscriber.ID, topics []substore.Tuple) ([]substore.Tuple, error)

// Chain runs a list of plugins with all_till_ok semantics.
type Chain []Plugin

// Run executes the chain against topics, returning either the (possibly
// rewritten) topics or ErrNotAllowed.
func (c Chain) Run(user string, id subscriber.ID, topics []substore.Tuple) ([]substore.Tuple, error) {
	for _, p := range c {
		out, err := p(user, id, topics)
		switch {
		case err == nil:
			if out == nil {
				return topics, nil
			}
			return out, nil
		case errors.Is(err, ErrNext):
			continue
		default:
			return nil, ErrNotAllowed
		}
	}

	// an empty chain, or a chain where every plugin defers, allows by
	// default — matching the teacher's Backend.Authenticate "allow all if
	// there are no credentials" convention (broker/backend.go).
	return topics, nil
}
