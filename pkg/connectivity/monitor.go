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

// Package connectivity observes reachability transitions and schedules queue
// replay on the offline-to-online edge.
package connectivity

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/mutationstore"
)

var (
	onlineGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offlinesync_online",
			Help: "Whether the remote API is currently reachable",
		},
	)
	queueLengthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offlinesync_queue_length",
			Help: "Number of mutations waiting for replay",
		},
	)
)

// Notifier is an edge-triggered source of reachability transitions. onUp and
// onDown fire on "became reachable" / "became unreachable"; duplicate edges
// are tolerated by the monitor.
type Notifier interface {
	Subscribe(onUp func(), onDown func()) (unsubscribe func(), err error)
}

// Monitor tracks the reachability signal and the queue length. It owns its
// subscription explicitly: Start subscribes, Stop unsubscribes. The monitor
// starts out offline until the notifier reports the first up edge.
type Monitor struct {
	store       mutationstore.Store
	onReconnect func()
	online      atomic.Bool

	mu          sync.Mutex
	unsubscribe func()
}

// NewMonitor builds a monitor over store. onReconnect is invoked (in its own
// goroutine) once per offline-to-online transition; it is typically the
// replayer's Replay. May be nil.
func NewMonitor(store mutationstore.Store, onReconnect func()) *Monitor {
	return &Monitor{store: store, onReconnect: onReconnect}
}

// Start subscribes to the notifier and performs one queue length refresh.
func (m *Monitor) Start(n Notifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return errors.New("connectivity monitor already started")
	}

	unsubscribe, err := n.Subscribe(m.becameReachable, m.becameUnreachable)
	if err != nil {
		return err
	}
	m.unsubscribe = unsubscribe
	m.QueueLength()
	return nil
}

// Stop drops the subscription. In-progress replay runs are not cancelled; a
// run already past its network call may finish it.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// QueueLength queries the store and updates the gauge.
func (m *Monitor) QueueLength() uint64 {
	length := m.store.Length()
	queueLengthGauge.Set(float64(length))
	return length
}

func (m *Monitor) becameReachable() {
	if m.online.Swap(true) {
		return // duplicate up edge
	}
	onlineGauge.Set(1)
	length := m.QueueLength()
	zap.S().Infof("Connectivity restored, %d queued mutations pending", length)

	if m.onReconnect != nil {
		go m.onReconnect()
	}
}

func (m *Monitor) becameUnreachable() {
	if !m.online.Swap(false) {
		return // duplicate down edge
	}
	onlineGauge.Set(0)
	zap.S().Warnf("Connectivity lost, capturing writes locally")
}
