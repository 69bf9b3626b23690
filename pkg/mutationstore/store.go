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

// Package mutationstore persists captured write intents across process
// restarts. One store instance is opened per process and passed to the
// connectivity monitor and the replayer; there is no ambient singleton.
package mutationstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beeker1121/goque"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

// schemaVersion is the current on-disk layout version. migrate is a no-op at
// version 1 and exists so a future layout change has somewhere to hook in.
const schemaVersion = 1

const versionFile = "STORE_VERSION"

// ErrHeadMismatch is returned by Remove when the given id is not at the head
// of the queue. The queue is drained strictly front to back; removing from
// the middle would reorder replay.
var ErrHeadMismatch = errors.New("mutation is not at the head of the queue")

// Store is the durable mutation store contract.
type Store interface {
	// Enqueue appends a mutation. A successful Enqueue is visible to
	// ListAll after a process restart.
	Enqueue(m datamodel.QueuedMutation) error
	// ListAll returns every queued mutation in insertion order.
	ListAll() ([]datamodel.QueuedMutation, error)
	// Remove deletes the mutation with the given id, which must be the
	// current queue head.
	Remove(id string) error
	// Length returns the number of queued mutations.
	Length() uint64
	Close() error
}

// DurableStore is a goque-backed (LevelDB) Store.
type DurableStore struct {
	mu   sync.Mutex
	pq   *goque.Queue
	path string
}

// Open opens the queue under path, creating it if needed, and runs the schema
// migration hook when the persisted version is older than schemaVersion. The
// version marker lives next to the queue directory so LevelDB owns its
// directory exclusively.
func Open(path string) (*DurableStore, error) {
	if err := migrate(path); err != nil {
		return nil, &datamodel.StorageError{Op: "migrate", Err: err}
	}

	pq, err := goque.OpenQueue(filepath.Join(path, "queue"))
	if err != nil {
		return nil, &datamodel.StorageError{Op: "open", Err: err}
	}

	s := &DurableStore{pq: pq, path: path}
	zap.S().Infof("Opened mutation store at %s with %d queued mutations", path, pq.Length())
	return s, nil
}

func migrate(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return err
	}

	versionPath := filepath.Join(path, versionFile)
	raw, err := os.ReadFile(versionPath)
	if os.IsNotExist(err) {
		return os.WriteFile(versionPath, []byte(strconv.Itoa(schemaVersion)), 0640)
	}
	if err != nil {
		return err
	}

	version, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("unreadable store version %q: %w", raw, err)
	}

	switch version {
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("unsupported store version %d (expected %d)", version, schemaVersion)
	}
}

func (s *DurableStore) Enqueue(m datamodel.QueuedMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(m)
	if err != nil {
		return &datamodel.StorageError{Op: "encode", Err: err}
	}
	if _, err = s.pq.Enqueue(raw); err != nil {
		return &datamodel.StorageError{Op: "enqueue", Err: err}
	}

	zap.S().Debugf("Queued mutation %s (%s %s), queue length now %d", m.ID, m.Method, m.Target, s.pq.Length())
	return nil
}

func (s *DurableStore) ListAll() ([]datamodel.QueuedMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := s.pq.Length()
	mutations := make([]datamodel.QueuedMutation, 0, length)
	for i := uint64(0); i < length; i++ {
		item, err := s.pq.PeekByOffset(i)
		if err != nil {
			return nil, &datamodel.StorageError{Op: "scan", Err: err}
		}
		var m datamodel.QueuedMutation
		if err = json.Unmarshal(item.Value, &m); err != nil {
			return nil, &datamodel.StorageError{Op: "decode", Err: err}
		}
		mutations = append(mutations, m)
	}
	return mutations, nil
}

func (s *DurableStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.pq.Peek()
	if err != nil {
		return &datamodel.StorageError{Op: "peek", Err: err}
	}
	var m datamodel.QueuedMutation
	if err = json.Unmarshal(head.Value, &m); err != nil {
		return &datamodel.StorageError{Op: "decode", Err: err}
	}
	if m.ID != id {
		return fmt.Errorf("remove %s: %w", id, ErrHeadMismatch)
	}
	if _, err = s.pq.Dequeue(); err != nil {
		return &datamodel.StorageError{Op: "dequeue", Err: err}
	}
	return nil
}

func (s *DurableStore) Length() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.Length()
}

func (s *DurableStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.Close()
}

// Capture builds a QueuedMutation for a write that could not be confirmed as
// reaching the network and persists it immediately.
func Capture(s Store, target string, method datamodel.Method, payload json.RawMessage) (datamodel.QueuedMutation, error) {
	m := datamodel.QueuedMutation{
		ID:         datamodel.NewMutationID(),
		Target:     target,
		Method:     method,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	if err := s.Enqueue(m); err != nil {
		return datamodel.QueuedMutation{}, err
	}
	return m, nil
}

// CaptureExecutor is an executor that never touches the network: every call
// is captured into the store for later replay. A reconciler built with it
// keeps the same optimistic-apply behaviour while offline.
type CaptureExecutor struct {
	Store Store
}

func (e CaptureExecutor) Execute(_ context.Context, target string, method datamodel.Method, payload json.RawMessage) error {
	_, err := Capture(e.Store, target, method, payload)
	return err
}
