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
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

func Test_failureMessage(t *testing.T) {
	assert.Equal(t,
		failureMessage(&datamodel.NetworkError{Target: "/x", Err: errors.New("refused")}),
		"The server could not be reached. Your change was not saved.")
	assert.Equal(t,
		failureMessage(&datamodel.NetworkError{Target: "/x", Status: 503}),
		"The server reported an error (status 503). Your change was not saved.")
	assert.Equal(t,
		failureMessage(&datamodel.NetworkError{Target: "/x", Status: 409}),
		"The server rejected the change (status 409).")
	assert.Equal(t,
		failureMessage(&datamodel.StorageError{Op: "enqueue", Err: errors.New("full")}),
		"Your change could not be stored on this device.")
	assert.Equal(t,
		failureMessage(errors.New("boom")),
		"The change could not be saved: boom")
}
