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

// Package subscriber defines the identity shared by the registry's
// subscription store, session table and queue supervisor.
package subscriber

import "fmt"

// ID identifies an MQTT client within a mountpoint namespace. Equality is
// structural, so ID is safe to use directly as a map key.
type ID struct {
	Mountpoint string
	ClientID   string
}

// New builds an ID from a mountpoint and a possibly binary client
// identifier. The client id is copied into a string once here, at the
// boundary, so the rest of the registry never has to reason about []byte
// equality.
func New(mountpoint string, clientID []byte) ID {
	return ID{Mountpoint: mountpoint, ClientID: string(clientID)}
}

// String renders the id for logs and introspection output.
func (id ID) String() string {
	return fmt.Sprintf("%s/%s", id.Mountpoint, id.ClientID)
}

// Zero reports whether id is the zero value, used by callers that treat an
// empty id as "no session requested".
func (id ID) Zero() bool {
	return id == ID{}
}
