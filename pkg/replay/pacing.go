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
	"math/rand"
	"time"
)

// backoffDelay returns a randomized truncated exponential backoff: a random
// number of slots in [0, 2^attempt), capped at maximum. attempt counts from 1.
func backoffDelay(attempt int, slotTime time.Duration, maximum time.Duration) time.Duration {
	if slotTime <= 0 || attempt <= 0 {
		return 0
	}
	if attempt > 62 {
		return maximum
	}

	slots := rand.Int63n(int64(1) << attempt)

	// Guard the multiplication against overflow before computing the delay.
	if maximum > 0 && slots > int64(maximum/slotTime) {
		return maximum
	}
	return time.Duration(slots) * slotTime
}
