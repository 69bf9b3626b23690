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
	"testing"
	"time"
)

func Test_backoffDelay(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		delay := backoffDelay(attempt, time.Microsecond, time.Second)
		if delay < 0 || delay > time.Second {
			t.Fatalf("attempt %d: delay %s out of range", attempt, delay)
		}
		t.Logf("Attempt %d: %s", attempt, delay)
	}
}

func Test_backoffDelayZeroSlot(t *testing.T) {
	if d := backoffDelay(3, 0, time.Second); d != 0 {
		t.Fatalf("expected no delay without a slot time, got %s", d)
	}
}

func Test_backoffDelayHugeAttemptCapped(t *testing.T) {
	if d := backoffDelay(100, time.Millisecond, time.Second); d != time.Second {
		t.Fatalf("expected cap at maximum, got %s", d)
	}
}
