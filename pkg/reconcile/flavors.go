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

package reconcile

import (
	"context"
	"errors"

	"github.com/rentfolio/offlinesync/pkg/cache"
	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

// TempID returns a locally generated identity for a create placeholder. The
// authoritative refetch replaces it with the server-assigned id.
func TempID() string {
	return "optimistic-" + datamodel.NewMutationID()
}

// CreateConfig is the create-flavored configuration: the placeholder builder
// is mandatory.
type CreateConfig[V any] struct {
	Execute  func(ctx context.Context, vars V) error
	CacheKey string
	// Build synthesizes the placeholder record. If it leaves the id empty a
	// TempID is assigned.
	Build func(vars V) datamodel.Record

	OnCommitted      func(message string)
	OnFailed         func(message string)
	CloseEditor      func()
	CommittedMessage string
}

// NewCreate appends a tagged placeholder to the cached list.
func NewCreate[V any](c cache.KeyedCache, cfg CreateConfig[V]) (*Mutator[V], error) {
	if cfg.Build == nil {
		return nil, errors.New("reconcile: Build is required for a create mutation")
	}
	return New(c, Config[V]{
		Execute:  cfg.Execute,
		CacheKey: cfg.CacheKey,
		OnCreate: func(vars V) datamodel.Record {
			rec := cfg.Build(vars)
			if rec.ID() == "" {
				rec["id"] = TempID()
			}
			return rec
		},
		OnCommitted:      cfg.OnCommitted,
		OnFailed:         cfg.OnFailed,
		CloseEditor:      cfg.CloseEditor,
		CommittedMessage: cfg.CommittedMessage,
	})
}

// UpdateConfig is the update-flavored configuration: the item with the
// matching id is replaced in place.
type UpdateConfig[V any] struct {
	Execute  func(ctx context.Context, vars V) error
	CacheKey string
	// ID extracts the identity of the record being updated.
	ID func(vars V) string
	// Apply produces the optimistically updated record from a copy of the
	// current one.
	Apply func(vars V, item datamodel.Record) datamodel.Record

	OnCommitted      func(message string)
	OnFailed         func(message string)
	CloseEditor      func()
	CommittedMessage string
}

// NewUpdate maps vars over the cached item list by id, tagging the replaced
// record.
func NewUpdate[V any](c cache.KeyedCache, cfg UpdateConfig[V]) (*Mutator[V], error) {
	if cfg.ID == nil || cfg.Apply == nil {
		return nil, errors.New("reconcile: ID and Apply are required for an update mutation")
	}
	return New(c, Config[V]{
		Execute:  cfg.Execute,
		CacheKey: cfg.CacheKey,
		OnUpdate: func(vars V, items []datamodel.Record) []datamodel.Record {
			id := cfg.ID(vars)
			out := make([]datamodel.Record, len(items))
			for i, item := range items {
				if item.ID() != id {
					out[i] = item
					continue
				}
				updated := cfg.Apply(vars, datamodel.CloneRecord(item))
				datamodel.MarkOptimistic(updated)
				out[i] = updated
			}
			return out
		},
		OnCommitted:      cfg.OnCommitted,
		OnFailed:         cfg.OnFailed,
		CloseEditor:      cfg.CloseEditor,
		CommittedMessage: cfg.CommittedMessage,
	})
}

// DeleteConfig is the delete-flavored configuration: the item with the
// matching id is filtered out.
type DeleteConfig[V any] struct {
	Execute  func(ctx context.Context, vars V) error
	CacheKey string
	// ID extracts the identity of the record being removed.
	ID func(vars V) string

	OnCommitted      func(message string)
	OnFailed         func(message string)
	CloseEditor      func()
	CommittedMessage string
}

// NewDelete removes the record optimistically and restores it on failure.
func NewDelete[V any](c cache.KeyedCache, cfg DeleteConfig[V]) (*Mutator[V], error) {
	if cfg.ID == nil {
		return nil, errors.New("reconcile: ID is required for a delete mutation")
	}
	return New(c, Config[V]{
		Execute:          cfg.Execute,
		CacheKey:         cfg.CacheKey,
		OnDelete:         cfg.ID,
		OnCommitted:      cfg.OnCommitted,
		OnFailed:         cfg.OnFailed,
		CloseEditor:      cfg.CloseEditor,
		CommittedMessage: cfg.CommittedMessage,
	})
}
