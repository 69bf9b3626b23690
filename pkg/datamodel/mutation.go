// Copyright 2025 Rentfolio GmbH
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

package datamodel

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

// Method is the kind of write a mutation performs. The request executor maps
// it to the matching transport verb.
type Method string

const (
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
)

// HTTPVerb returns the HTTP method the executor should use for this mutation.
func (m Method) HTTPVerb() string {
	switch m {
	case MethodCreate:
		return http.MethodPost
	case MethodUpdate:
		return http.MethodPut
	case MethodPatch:
		return http.MethodPatch
	case MethodDelete:
		return http.MethodDelete
	}
	return ""
}

// Valid reports whether m is one of the four known methods.
func (m Method) Valid() bool {
	return m.HTTPVerb() != ""
}

// ParseMethod converts a string into a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mutation method: %q", s)
	}
	return m, nil
}

// QueuedMutation is a captured write intent. It is persisted the moment it is
// created and removed from the store only after a replay attempt has been
// confirmed successful. Records are never mutated in place.
type QueuedMutation struct {
	ID         string          `json:"id"`
	Target     string          `json:"target"`
	Method     Method          `json:"method"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMutationID returns a ULID string. ULIDs sort lexicographically by their
// timestamp component; the monotonic entropy source keeps ids generated
// within the same millisecond in insertion order as well.
func NewMutationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
