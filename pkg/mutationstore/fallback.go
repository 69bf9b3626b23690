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

package mutationstore

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

// FallbackStore wraps a durable Store and degrades to session-scoped
// in-memory queuing when the underlying storage fails (unavailable, quota
// exceeded). Degraded mutations survive only the current process; the user
// layer is notified once via OnDegraded instead of the write being silently
// dropped.
type FallbackStore struct {
	durable Store

	// OnDegraded is called at most once, on the first storage failure.
	OnDegraded func(err error)

	mu       sync.Mutex
	memory   []datamodel.QueuedMutation
	degraded bool
}

// NewFallbackStore wraps durable. onDegraded may be nil.
func NewFallbackStore(durable Store, onDegraded func(err error)) *FallbackStore {
	return &FallbackStore{durable: durable, OnDegraded: onDegraded}
}

// Degraded reports whether the store has fallen back to in-memory queuing.
func (s *FallbackStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FallbackStore) Enqueue(m datamodel.QueuedMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.degraded {
		err := s.durable.Enqueue(m)
		if err == nil {
			return nil
		}
		var serr *datamodel.StorageError
		if !errors.As(err, &serr) {
			return err
		}
		s.enterDegraded(err)
	}

	s.memory = append(s.memory, m)
	zap.S().Warnf("Mutation %s held in memory only, %d degraded mutations pending", m.ID, len(s.memory))
	return nil
}

// enterDegraded must be called with s.mu held.
func (s *FallbackStore) enterDegraded(err error) {
	s.degraded = true
	zap.S().Errorf("Mutation store degraded to in-memory queuing: %v", err)
	if s.OnDegraded != nil {
		go s.OnDegraded(err)
	}
}

func (s *FallbackStore) ListAll() ([]datamodel.QueuedMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	durable, err := s.durable.ListAll()
	if err != nil {
		// The durable entries are the causal prefix of everything held in
		// memory. Serving only the tail would let the replayer execute a
		// mutation whose predecessors are still queued, so the failed scan
		// surfaces instead.
		zap.S().Errorf("Error listing durable mutations: %v", err)
		return nil, err
	}
	// Durable entries precede in-memory ones: degradation happens after the
	// last successful durable write.
	all := make([]datamodel.QueuedMutation, 0, len(durable)+len(s.memory))
	all = append(all, durable...)
	all = append(all, s.memory...)
	return all, nil
}

func (s *FallbackStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.durable.Length() > 0 {
		return s.durable.Remove(id)
	}
	if len(s.memory) > 0 && s.memory[0].ID == id {
		s.memory = s.memory[1:]
		return nil
	}
	return ErrHeadMismatch
}

func (s *FallbackStore) Length() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durable.Length() + uint64(len(s.memory))
}

func (s *FallbackStore) Close() error {
	return s.durable.Close()
}
