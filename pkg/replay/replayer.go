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

// Package replay drains the mutation store against the network, strictly in
// insertion order, one pass at a time.
package replay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
	"github.com/rentfolio/offlinesync/pkg/mutationstore"
)

var (
	replayedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offlinesync_mutations_replayed_total",
			Help: "The total number of queued mutations replayed successfully",
		},
	)
	replayHalts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offlinesync_replay_halts_total",
			Help: "The total number of replay passes halted by a failed mutation",
		},
	)
	syncingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offlinesync_syncing",
			Help: "Whether a replay pass is currently running",
		},
	)
)

// Executor performs one remote write. Injected; the pipeline never builds
// requests itself.
type Executor interface {
	Execute(ctx context.Context, target string, method datamodel.Method, payload json.RawMessage) error
}

// RetryPolicy paces repeated attempts of a single mutation within one replay
// pass. The zero value means one attempt per mutation per pass, leaving all
// retrying to the next connectivity transition.
type RetryPolicy struct {
	// MaxAttempts per mutation within one pass. Values below 1 mean 1.
	MaxAttempts int
	// SlotTime is the base unit of the truncated exponential backoff
	// between attempts.
	SlotTime time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Replayer drains the store through the executor. A single consumer: at most
// one pass runs at a time, and a pass stops at the first failed mutation so
// causally dependent writes are never applied out of order.
type Replayer struct {
	store      mutationstore.Store
	executor   Executor
	policy     RetryPolicy
	running    atomic.Bool
	onProgress func()
}

func New(store mutationstore.Store, executor Executor, policy RetryPolicy) *Replayer {
	return &Replayer{store: store, executor: executor, policy: policy}
}

// SetProgressFunc registers a callback invoked after every successfully
// replayed mutation, e.g. to refresh a queue length gauge. Call before the
// first Replay.
func (r *Replayer) SetProgressFunc(fn func()) {
	r.onProgress = fn
}

// IsSyncing reports whether a replay pass is in progress.
func (r *Replayer) IsSyncing() bool {
	return r.running.Load()
}

// Replay executes every queued mutation in insertion order. Re-entrant-safe:
// a call while a pass is running is a no-op. A mutation is removed from the
// store only after its attempt is confirmed successful; on the first failure
// the pass halts and everything from the failed mutation on stays queued in
// original order for the next trigger.
func (r *Replayer) Replay(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		zap.S().Debugf("Replay already running, ignoring trigger")
		return nil
	}
	syncingGauge.Set(1)
	defer func() {
		syncingGauge.Set(0)
		r.running.Store(false)
	}()

	mutations, err := r.store.ListAll()
	if err != nil {
		zap.S().Errorf("Error listing queued mutations: %v", err)
		return err
	}
	if len(mutations) == 0 {
		return nil
	}
	zap.S().Infof("Replaying %d queued mutations", len(mutations))

	for _, m := range mutations {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = r.executeWithRetry(ctx, m); err != nil {
			// Remaining mutations stay queued; the next connectivity
			// transition retries from here.
			replayHalts.Inc()
			zap.S().Warnf("Replay halted at mutation %s (%s %s): %v", m.ID, m.Method, m.Target, err)
			return err
		}

		if err = r.store.Remove(m.ID); err != nil {
			zap.S().Errorf("Error removing replayed mutation %s: %v", m.ID, err)
			return err
		}
		replayedTotal.Inc()
		if r.onProgress != nil {
			r.onProgress()
		}
		zap.S().Debugf("Replayed mutation %s (%s %s)", m.ID, m.Method, m.Target)
	}

	zap.S().Infof("Replay finished, queue empty")
	return nil
}

func (r *Replayer) executeWithRetry(ctx context.Context, m datamodel.QueuedMutation) error {
	attempts := r.policy.attempts()

	var err error
	for attempt := 1; ; attempt++ {
		err = r.executor.Execute(ctx, m.Target, m.Method, m.Payload)
		if err == nil || attempt >= attempts {
			return err
		}

		delay := backoffDelay(attempt, r.policy.SlotTime, r.policy.MaxBackoff)
		zap.S().Debugf("Mutation %s attempt %d/%d failed, retrying in %s: %v", m.ID, attempt, attempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
