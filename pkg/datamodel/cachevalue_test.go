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
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

func TestWithItemsPreservesEnvelope(t *testing.T) {
	envelope := map[string]json.RawMessage{
		"count": json.RawMessage(`42`),
		"next":  json.RawMessage(`"/leases?page=2"`),
	}
	v := NewPaged([]Record{{"id": "1"}}, envelope)

	updated := v.WithItems([]Record{{"id": "1"}, {"id": "2"}})

	assert.Equal(t, KindPaged, updated.Kind)
	assert.Len(t, updated.Items(), 2)
	assert.Equal(t, envelope, updated.Envelope)
}

func TestWithItemsBareList(t *testing.T) {
	v := NewList([]Record{{"id": "a"}})
	updated := v.WithItems(nil)
	assert.Equal(t, KindList, updated.Kind)
	assert.Empty(t, updated.Items())
}

func TestCloneIsolatesSnapshot(t *testing.T) {
	original := NewList([]Record{
		{"id": "7", "tenant": map[string]any{"name": "Acme"}, "amounts": []any{1.0, 2.0}},
	})
	snap := original.Clone()

	// Mutate the original in place, nested values included.
	original.List[0]["tenant"].(map[string]any)["name"] = "Changed"
	original.List[0]["amounts"].([]any)[0] = 99.0
	MarkOptimistic(original.List[0])

	assert.Equal(t, "Acme", snap.List[0]["tenant"].(map[string]any)["name"])
	assert.Equal(t, 1.0, snap.List[0]["amounts"].([]any)[0])
	assert.False(t, IsOptimistic(snap.List[0]))
}

func TestMarkOptimistic(t *testing.T) {
	rec := Record{"id": "x"}
	assert.False(t, IsOptimistic(rec))
	MarkOptimistic(rec)
	assert.True(t, IsOptimistic(rec))
	loading, _ := rec[FlagLoading].(bool)
	assert.True(t, loading)

	ClearFlags(rec)
	assert.False(t, IsOptimistic(rec))
	assert.NotContains(t, rec, FlagLoading)
	assert.Equal(t, "x", rec.ID())
}
