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

// Package pipeline assembles the write pipeline: durable store, connectivity
// monitor, replayer and the shared cache, with one instance per process.
package pipeline

import (
	"context"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/cache"
	"github.com/rentfolio/offlinesync/pkg/connectivity"
	"github.com/rentfolio/offlinesync/pkg/datamodel"
	"github.com/rentfolio/offlinesync/pkg/mutationstore"
	"github.com/rentfolio/offlinesync/pkg/replay"
)

// Options configures New.
type Options struct {
	// StorePath is the directory of the durable mutation store.
	StorePath string
	// Executor performs the actual network calls.
	Executor replay.Executor
	// Notifier supplies reachability edges.
	Notifier connectivity.Notifier
	// Retry paces repeated attempts inside one replay pass. Zero value
	// means one attempt per mutation per pass.
	Retry replay.RetryPolicy
	// OnDegraded is told once when durable storage fails and queuing
	// degrades to memory. May be nil.
	OnDegraded func(err error)
}

// Pipeline is the assembled write pipeline. Pages enqueue through
// QueueMutation while offline and build reconcilers against Cache for
// optimistic writes.
type Pipeline struct {
	store    mutationstore.Store
	cache    *cache.MemCache
	monitor  *connectivity.Monitor
	replayer *replay.Replayer
}

// New opens the store, wires the components and starts the connectivity
// monitor. Call Close at process teardown.
func New(opts Options) (*Pipeline, error) {
	durable, err := mutationstore.Open(opts.StorePath)
	if err != nil {
		return nil, err
	}
	store := mutationstore.NewFallbackStore(durable, opts.OnDegraded)

	p := &Pipeline{
		store:    store,
		cache:    cache.NewMemCache(),
		replayer: replay.New(store, opts.Executor, opts.Retry),
	}
	p.monitor = connectivity.NewMonitor(store, func() {
		if err := p.replayer.Replay(context.Background()); err != nil {
			zap.S().Warnf("Scheduled replay did not finish: %v", err)
		}
	})
	p.replayer.SetProgressFunc(func() { p.monitor.QueueLength() })

	if err = p.monitor.Start(opts.Notifier); err != nil {
		_ = durable.Close()
		return nil, err
	}
	return p, nil
}

// Cache is the shared keyed cache reconcilers mutate.
func (p *Pipeline) Cache() *cache.MemCache {
	return p.cache
}

// Store exposes the mutation store, e.g. for diagnostics.
func (p *Pipeline) Store() mutationstore.Store {
	return p.store
}

// QueueMutation captures a write for later replay and refreshes the queue
// length signal.
func (p *Pipeline) QueueMutation(target string, method datamodel.Method, payload json.RawMessage) error {
	_, err := mutationstore.Capture(p.store, target, method, payload)
	p.monitor.QueueLength()
	return err
}

// ReplayQueue triggers a replay pass explicitly, independent of a
// connectivity transition.
func (p *Pipeline) ReplayQueue(ctx context.Context) error {
	err := p.replayer.Replay(ctx)
	p.monitor.QueueLength()
	return err
}

func (p *Pipeline) IsOnline() bool {
	return p.monitor.IsOnline()
}

func (p *Pipeline) IsSyncing() bool {
	return p.replayer.IsSyncing()
}

func (p *Pipeline) QueueLength() uint64 {
	return p.monitor.QueueLength()
}

// Close stops the monitor and closes the store. In-flight replay passes may
// finish their current network call first.
func (p *Pipeline) Close() error {
	p.monitor.Stop()
	return p.store.Close()
}
