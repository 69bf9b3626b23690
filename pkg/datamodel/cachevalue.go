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
	"github.com/goccy/go-json"
)

// Flags carried by placeholder records while a reconciliation is in flight.
// The authoritative refetch replaces the record wholesale, which clears them.
const (
	FlagOptimistic = "_isOptimistic"
	FlagLoading    = "_isLoading"
)

// Record is one cached entity, keyed by its "id" field. Payloads decoded from
// JSON only ever contain maps, slices, strings, numbers, bools and nil, which
// is what CloneRecord relies on.
type Record map[string]any

// ID returns the record's id field as a string, or "" if absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// MarkOptimistic tags rec as a placeholder with a pending reconciliation.
func MarkOptimistic(rec Record) {
	rec[FlagOptimistic] = true
	rec[FlagLoading] = true
}

// IsOptimistic reports whether rec is a placeholder not yet confirmed by the
// server.
func IsOptimistic(rec Record) bool {
	v, _ := rec[FlagOptimistic].(bool)
	return v
}

// ClearFlags strips the placeholder flags from rec, e.g. when a captured
// mutation is promoted to confirmed without an intermediate refetch.
func ClearFlags(rec Record) {
	delete(rec, FlagOptimistic)
	delete(rec, FlagLoading)
}

// CacheKind discriminates the two shapes a cache entry can take.
type CacheKind int

const (
	// KindList is a bare list of records.
	KindList CacheKind = iota
	// KindPaged is a list nested under a pagination envelope.
	KindPaged
)

// CacheValue is one cache entry: either a bare record list or a paginated
// envelope wrapping one. The variant is explicit so updaters never have to
// guess the shape at runtime.
type CacheValue struct {
	Kind CacheKind
	// List holds the records for KindList.
	List []Record
	// Results holds the inner list for KindPaged.
	Results []Record
	// Envelope holds the untouched remaining fields of a paginated response
	// (count, next, previous, ...). It is carried through updates verbatim.
	Envelope map[string]json.RawMessage
}

// NewList wraps a bare record list.
func NewList(items []Record) CacheValue {
	return CacheValue{Kind: KindList, List: items}
}

// NewPaged wraps a paginated result set, keeping the envelope fields as-is.
func NewPaged(results []Record, envelope map[string]json.RawMessage) CacheValue {
	return CacheValue{Kind: KindPaged, Results: results, Envelope: envelope}
}

// Items returns the record list regardless of variant.
func (v CacheValue) Items() []Record {
	if v.Kind == KindPaged {
		return v.Results
	}
	return v.List
}

// WithItems returns a copy of v with the inner list replaced. For KindPaged
// the envelope is preserved and only the inner list changes.
func (v CacheValue) WithItems(items []Record) CacheValue {
	if v.Kind == KindPaged {
		return CacheValue{Kind: KindPaged, Results: items, Envelope: v.Envelope}
	}
	return CacheValue{Kind: KindList, List: items}
}

// Clone deep-copies v. Snapshots taken before an optimistic mutation must be
// isolated from later in-place edits, so rollback restores the exact prior
// value.
func (v CacheValue) Clone() CacheValue {
	c := CacheValue{Kind: v.Kind}
	if v.List != nil {
		c.List = cloneRecords(v.List)
	}
	if v.Results != nil {
		c.Results = cloneRecords(v.Results)
	}
	if v.Envelope != nil {
		c.Envelope = make(map[string]json.RawMessage, len(v.Envelope))
		for k, raw := range v.Envelope {
			buf := make(json.RawMessage, len(raw))
			copy(buf, raw)
			c.Envelope[k] = buf
		}
	}
	return c
}

func cloneRecords(items []Record) []Record {
	out := make([]Record, len(items))
	for i, rec := range items {
		out[i] = CloneRecord(rec)
	}
	return out
}

// CloneRecord deep-copies a record, including nested maps and slices.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	return cloneAny(map[string]any(rec)).(map[string]any)
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneAny(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	default:
		return v
	}
}
