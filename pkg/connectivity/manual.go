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

package connectivity

import "sync"

// ManualNotifier is an in-process Notifier driven by explicit calls. Used in
// tests and by UI surfaces that expose a "retry now" control.
type ManualNotifier struct {
	mu     sync.Mutex
	onUp   func()
	onDown func()
}

func NewManualNotifier() *ManualNotifier {
	return &ManualNotifier{}
}

func (n *ManualNotifier) Subscribe(onUp func(), onDown func()) (func(), error) {
	n.mu.Lock()
	n.onUp = onUp
	n.onDown = onDown
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		n.onUp = nil
		n.onDown = nil
		n.mu.Unlock()
	}, nil
}

// SetOnline fires the up edge.
func (n *ManualNotifier) SetOnline() {
	n.mu.Lock()
	onUp := n.onUp
	n.mu.Unlock()
	if onUp != nil {
		onUp()
	}
}

// SetOffline fires the down edge.
func (n *ManualNotifier) SetOffline() {
	n.mu.Lock()
	onDown := n.onDown
	n.mu.Unlock()
	if onDown != nil {
		onDown()
	}
}
