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

// Package admission implements the token-bucket guard in front of every
// metadata mutation. Saturation is reported synchronously as ErrOverloaded
// rather than queuing the caller.
package admission

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/juju/ratelimit"
)

// ErrOverloaded is returned by Do when the bucket has no tokens available.
var ErrOverloaded = errors.New("admission: overloaded")

// Gate guards a named operation with a token bucket. The zero value is not
// usable; construct with New.
type Gate struct {
	name   string
	bucket *ratelimit.Bucket
}

// New creates a gate with the given bucket capacity and fill rate. capacity
// is the maximum burst of operations admitted at once; fillInterval is the
// time to add one token.
func New(name string, capacity int64, fillInterval time.Duration) *Gate {
	if capacity <= 0 {
		capacity = 1000
	}
	if fillInterval <= 0 {
		fillInterval = 10 * time.Millisecond
	}

	return &Gate{
		name:   name,
		bucket: ratelimit.NewBucket(fillInterval, capacity),
	}
}

// Do acquires one token from the bucket and, on success, runs op. The token
// is never held past the call: the gate neither blocks callers nor queues
// them, matching spec.md's "saturation returns Overloaded synchronously
// rather than queuing".
func Do[T any](g *Gate, op func() (T, error)) (T, error) {
	var zero T

	if g.bucket.TakeAvailable(1) == 0 {
		return zero, ErrOverloaded
	}

	return op()
}

// DoErr is the error-only variant of Do for operations with no result value.
func DoErr(g *Gate, op func() error) error {
	if g.bucket.TakeAvailable(1) == 0 {
		return ErrOverloaded
	}

	return op()
}

// Name reports the bucket's name, used in log and metric labels.
func (g *Gate) Name() string {
	return g.name
}

// Retrier retries op on ErrOverloaded with a fixed backoff, for callers that
// must eventually succeed (clean-session delete during registration,
// remap_subscription) rather than fail fast.
type Retrier struct {
	backoff *backoff.Backoff
}

// NewRetrier returns a Retrier that waits step between attempts, per
// spec.md's "retry after a fixed backoff of 100 ms".
func NewRetrier(step time.Duration) *Retrier {
	if step <= 0 {
		step = 100 * time.Millisecond
	}

	return &Retrier{backoff: &backoff.Backoff{Min: step, Max: step, Factor: 1}}
}

// Until runs op until it returns an error other than ErrOverloaded, or
// succeeds. It never gives up: callers needing a deadline must wrap ctx
// outside, matching spec.md's wait_til_ready note ("may loop indefinitely").
func (r *Retrier) Until(op func() error) error {
	for {
		err := op()
		if !errors.Is(err, ErrOverloaded) {
			return err
		}

		time.Sleep(r.backoff.Duration())
	}
}
