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

package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
	"github.com/rentfolio/offlinesync/pkg/mutationstore"
)

// recordingExecutor logs calls and fails for targets listed in failOn.
type recordingExecutor struct {
	mu     sync.Mutex
	calls  []string
	delay  time.Duration
	failOn map[string]bool
}

func (e *recordingExecutor) Execute(ctx context.Context, target string, method datamodel.Method, payload json.RawMessage) error {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	e.calls = append(e.calls, target)
	e.mu.Unlock()

	if e.failOn[target] {
		return &datamodel.NetworkError{Target: target, Err: errors.New("unreachable")}
	}
	return nil
}

func (e *recordingExecutor) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func openStore(t *testing.T) *mutationstore.DurableStore {
	t.Helper()
	s, err := mutationstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func enqueue(t *testing.T, s mutationstore.Store, id string, target string, method datamodel.Method, payload string) {
	t.Helper()
	require.NoError(t, s.Enqueue(datamodel.QueuedMutation{
		ID:         id,
		Target:     target,
		Method:     method,
		Payload:    json.RawMessage(payload),
		EnqueuedAt: time.Now(),
	}))
}

func TestReplayPreservesOrderAndEmptiesStore(t *testing.T) {
	s := openStore(t)
	exec := &recordingExecutor{}
	r := New(s, exec, RetryPolicy{})

	const n = 10
	for i := 0; i < n; i++ {
		enqueue(t, s, fmt.Sprintf("m-%02d", i), fmt.Sprintf("/items/%d", i), datamodel.MethodUpdate, `{}`)
	}

	require.NoError(t, r.Replay(context.Background()))

	calls := exec.recorded()
	require.Len(t, calls, n)
	for i, target := range calls {
		assert.Equal(t, fmt.Sprintf("/items/%d", i), target)
	}
	assert.Equal(t, uint64(0), s.Length())
	assert.False(t, r.IsSyncing())
}

func TestReplayHaltsOnFirstFailure(t *testing.T) {
	s := openStore(t)
	exec := &recordingExecutor{failOn: map[string]bool{"/items/2": true}}
	r := New(s, exec, RetryPolicy{})

	for i := 0; i < 5; i++ {
		enqueue(t, s, fmt.Sprintf("m-%d", i), fmt.Sprintf("/items/%d", i), datamodel.MethodPatch, `{}`)
	}

	err := r.Replay(context.Background())
	var nerr *datamodel.NetworkError
	require.ErrorAs(t, err, &nerr)

	// Mutations 0 and 1 replayed; 2, 3, 4 remain in original order, and the
	// executor was never invoked past the failed one.
	assert.Equal(t, []string{"/items/0", "/items/1", "/items/2"}, exec.recorded())
	remaining, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	assert.Equal(t, "m-2", remaining[0].ID)
	assert.Equal(t, "m-3", remaining[1].ID)
	assert.Equal(t, "m-4", remaining[2].ID)
}

func TestReplaySingleFlight(t *testing.T) {
	s := openStore(t)
	exec := &recordingExecutor{delay: 10 * time.Millisecond}
	r := New(s, exec, RetryPolicy{})

	const n = 5
	for i := 0; i < n; i++ {
		enqueue(t, s, fmt.Sprintf("m-%d", i), "/items", datamodel.MethodCreate, `{}`)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Replay(context.Background()))
		}()
	}
	wg.Wait()

	assert.Len(t, exec.recorded(), n, "overlapping replay calls must not duplicate mutations")
	assert.Equal(t, uint64(0), s.Length())
}

func TestReplayScenarioOfflineCreateThenUpdate(t *testing.T) {
	s := openStore(t)
	exec := &recordingExecutor{}
	r := New(s, exec, RetryPolicy{})

	enqueue(t, s, "a", "/items", datamodel.MethodCreate, `{"name":"X"}`)
	enqueue(t, s, "b", "/items/1", datamodel.MethodUpdate, `{"name":"Y"}`)

	require.NoError(t, r.Replay(context.Background()))
	assert.Equal(t, []string{"/items", "/items/1"}, exec.recorded())
	assert.Equal(t, uint64(0), s.Length())
}

func TestReplayScenarioSecondMutationFails(t *testing.T) {
	s := openStore(t)
	exec := &recordingExecutor{failOn: map[string]bool{"/items/1": true}}
	r := New(s, exec, RetryPolicy{})

	enqueue(t, s, "a", "/items", datamodel.MethodCreate, `{"name":"X"}`)
	enqueue(t, s, "b", "/items/1", datamodel.MethodUpdate, `{"name":"Y"}`)

	assert.Error(t, r.Replay(context.Background()))

	remaining, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b", remaining[0].ID)
}

// flakyExecutor fails a fixed number of times before succeeding.
type flakyExecutor struct {
	failures int
	calls    int
}

func (e *flakyExecutor) Execute(ctx context.Context, target string, method datamodel.Method, payload json.RawMessage) error {
	e.calls++
	if e.calls <= e.failures {
		return &datamodel.NetworkError{Target: target, Err: errors.New("flaky")}
	}
	return nil
}

func TestRetryPolicyRecoversWithinOnePass(t *testing.T) {
	s := openStore(t)
	exec := &flakyExecutor{failures: 2}
	r := New(s, exec, RetryPolicy{MaxAttempts: 3, SlotTime: time.Microsecond, MaxBackoff: time.Millisecond})

	enqueue(t, s, "a", "/items", datamodel.MethodCreate, `{}`)

	require.NoError(t, r.Replay(context.Background()))
	assert.Equal(t, 3, exec.calls)
	assert.Equal(t, uint64(0), s.Length())
}

func TestRetryPolicyExhausted(t *testing.T) {
	s := openStore(t)
	exec := &flakyExecutor{failures: 10}
	r := New(s, exec, RetryPolicy{MaxAttempts: 2, SlotTime: time.Microsecond, MaxBackoff: time.Millisecond})

	enqueue(t, s, "a", "/items", datamodel.MethodCreate, `{}`)

	assert.Error(t, r.Replay(context.Background()))
	assert.Equal(t, 2, exec.calls)
	assert.Equal(t, uint64(1), s.Length())
}

func TestReplayStopsOnCancelledContext(t *testing.T) {
	s := openStore(t)
	exec := &recordingExecutor{}
	r := New(s, exec, RetryPolicy{})

	enqueue(t, s, "a", "/items", datamodel.MethodCreate, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, r.Replay(ctx))
	assert.Empty(t, exec.recorded())
	assert.Equal(t, uint64(1), s.Length())
}
