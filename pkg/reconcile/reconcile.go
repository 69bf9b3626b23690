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

// Package reconcile wraps a single remote write with an immediate local
// cache mutation and a guaranteed terminal outcome: either the cache entry is
// invalidated so the next read fetches server truth, or the pre-mutation
// snapshot is restored verbatim. It does not care whether the write goes over
// the network directly or is captured into the mutation store first.
package reconcile

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/cache"
	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

// State of one mutation invocation.
type State int32

const (
	StateIdle State = iota
	StateSnapshotting
	StateOptimisticallyApplied
	StateCommitting
	StateReconciled
	StateRollingBack
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSnapshotting:
		return "snapshotting"
	case StateOptimisticallyApplied:
		return "optimistically-applied"
	case StateCommitting:
		return "committing"
	case StateReconciled:
		return "reconciled"
	case StateRollingBack:
		return "rolling-back"
	case StateRolledBack:
		return "rolled-back"
	}
	return "unknown"
}

// Config describes one mutation. Exactly one of OnCreate, OnUpdate, OnDelete
// may be set; with none set the cache is left untouched and the caller
// invalidates manually.
type Config[V any] struct {
	// Execute performs the remote write, or captures it into the mutation
	// store when offline.
	Execute func(ctx context.Context, vars V) error

	// CacheKey is the cache entry this mutation affects. Required when a
	// transform is set.
	CacheKey string

	// OnCreate builds the placeholder record to append. It is tagged as
	// optimistic automatically.
	OnCreate func(vars V) datamodel.Record
	// OnUpdate maps the current item list to the optimistically updated one.
	// Records it adds or replaces are tagged as optimistic automatically.
	OnUpdate func(vars V, items []datamodel.Record) []datamodel.Record
	// OnDelete names the id to remove from the list.
	OnDelete func(vars V) string

	// OnCommitted and OnFailed carry user-facing notifications. Either may
	// be nil.
	OnCommitted func(message string)
	OnFailed    func(message string)

	// CloseEditor dismisses the input surface before the write starts, so
	// the UI never waits on the network. May be nil.
	CloseEditor func()

	// CommittedMessage overrides the default success notification.
	CommittedMessage string
}

func (c *Config[V]) transformCount() int {
	n := 0
	if c.OnCreate != nil {
		n++
	}
	if c.OnUpdate != nil {
		n++
	}
	if c.OnDelete != nil {
		n++
	}
	return n
}

// Mutator is the handle returned for one configured mutation. It can be
// invoked repeatedly; State, IsPending and Err describe the most recent
// invocation.
type Mutator[V any] struct {
	cache cache.KeyedCache
	cfg   Config[V]

	mu      sync.Mutex
	state   State
	err     error
	pending int
}

// New validates cfg and returns a mutator bound to c.
func New[V any](c cache.KeyedCache, cfg Config[V]) (*Mutator[V], error) {
	if cfg.Execute == nil {
		return nil, errors.New("reconcile: Execute is required")
	}
	if n := cfg.transformCount(); n > 1 {
		return nil, errors.New("reconcile: at most one of OnCreate, OnUpdate, OnDelete may be set")
	} else if n == 1 && cfg.CacheKey == "" {
		return nil, errors.New("reconcile: CacheKey is required with a cache transform")
	}
	return &Mutator[V]{cache: c, cfg: cfg, state: StateIdle}, nil
}

func (m *Mutator[V]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsPending reports whether an invocation is currently in flight.
func (m *Mutator[V]) IsPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending > 0
}

// Err returns the error of the most recent invocation, or nil.
func (m *Mutator[V]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Mutator[V]) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Mutate applies the optimistic cache change, runs Execute, and settles on
// exactly one terminal outcome: invalidation of the cache key on success, or
// verbatim snapshot restoration plus OnFailed on failure.
func (m *Mutator[V]) Mutate(ctx context.Context, vars V) error {
	m.mu.Lock()
	m.pending++
	m.err = nil
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.pending--
		m.mu.Unlock()
	}()

	if m.cfg.CloseEditor != nil {
		m.cfg.CloseEditor()
	}

	hasTransform := m.cfg.transformCount() == 1
	var snapshot datamodel.CacheValue
	var existed bool

	if hasTransform {
		// A background refetch landing between snapshot and apply would
		// overwrite the optimistic state with stale data.
		m.cache.CancelInFlight(m.cfg.CacheKey)

		m.setState(StateSnapshotting)
		current, found := m.cache.Get(m.cfg.CacheKey)
		existed = found
		if found {
			snapshot = current.Clone()
		}

		if err := m.cache.Set(m.cfg.CacheKey, func(old datamodel.CacheValue, found bool) datamodel.CacheValue {
			return m.applyTransform(vars, old, found)
		}); err != nil {
			// Nothing was applied, so there is nothing to roll back.
			m.fail(err)
			return err
		}
		m.setState(StateOptimisticallyApplied)
	}

	m.setState(StateCommitting)
	err := m.cfg.Execute(ctx, vars)

	if err == nil {
		if m.cfg.OnCommitted != nil {
			m.cfg.OnCommitted(m.committedMessage())
		}
		if hasTransform {
			// The next read refetches server truth, replacing the
			// placeholder and clearing its flags.
			m.cache.Invalidate(m.cfg.CacheKey)
		}
		m.setState(StateReconciled)
		return nil
	}

	m.setState(StateRollingBack)
	if hasTransform {
		m.rollback(snapshot, existed)
	}
	m.fail(err)
	return err
}

func (m *Mutator[V]) rollback(snapshot datamodel.CacheValue, existed bool) {
	if !existed {
		m.cache.Invalidate(m.cfg.CacheKey)
		return
	}
	if err := m.cache.Set(m.cfg.CacheKey, func(datamodel.CacheValue, bool) datamodel.CacheValue {
		return snapshot
	}); err != nil {
		zap.S().Errorf("Error restoring snapshot for cache key %s: %v", m.cfg.CacheKey, err)
	}
}

func (m *Mutator[V]) fail(err error) {
	m.mu.Lock()
	m.state = StateRolledBack
	m.err = err
	m.mu.Unlock()

	zap.S().Warnf("Mutation against cache key %s rolled back: %v", m.cfg.CacheKey, err)
	if m.cfg.OnFailed != nil {
		m.cfg.OnFailed(failureMessage(err))
	}
}

func (m *Mutator[V]) applyTransform(vars V, old datamodel.CacheValue, found bool) datamodel.CacheValue {
	switch {
	case m.cfg.OnCreate != nil:
		rec := m.cfg.OnCreate(vars)
		datamodel.MarkOptimistic(rec)
		if !found {
			return datamodel.NewList([]datamodel.Record{rec})
		}
		return old.WithItems(append(old.Items(), rec))

	case m.cfg.OnUpdate != nil:
		items := old.Items()
		updated := m.cfg.OnUpdate(vars, items)
		prior := make(map[string]datamodel.Record, len(items))
		for _, rec := range items {
			prior[rec.ID()] = rec
		}
		// Records the transform added or replaced carry the placeholder
		// flags until the authoritative refetch; records passed through
		// untouched stay untagged. Changed records must be returned as
		// fresh copies for the diff to see them, which is what the
		// flavored constructors do.
		for _, rec := range updated {
			before, known := prior[rec.ID()]
			if !known || !reflect.DeepEqual(before, rec) {
				datamodel.MarkOptimistic(rec)
			}
		}
		return old.WithItems(updated)

	default: // OnDelete
		id := m.cfg.OnDelete(vars)
		items := old.Items()
		filtered := make([]datamodel.Record, 0, len(items))
		for _, rec := range items {
			if rec.ID() != id {
				filtered = append(filtered, rec)
			}
		}
		return old.WithItems(filtered)
	}
}

func (m *Mutator[V]) committedMessage() string {
	if m.cfg.CommittedMessage != "" {
		return m.cfg.CommittedMessage
	}
	return "Saved"
}
