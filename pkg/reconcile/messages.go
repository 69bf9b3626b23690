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
	"fmt"
	"net/http"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

// failureMessage derives the user-facing text for a failed mutation.
func failureMessage(err error) string {
	var nerr *datamodel.NetworkError
	if errors.As(err, &nerr) {
		switch {
		case nerr.Status == 0:
			return "The server could not be reached. Your change was not saved."
		case nerr.Status >= http.StatusInternalServerError:
			return fmt.Sprintf("The server reported an error (status %d). Your change was not saved.", nerr.Status)
		default:
			return fmt.Sprintf("The server rejected the change (status %d).", nerr.Status)
		}
	}

	var serr *datamodel.StorageError
	if errors.As(err, &serr) {
		return "Your change could not be stored on this device."
	}

	return fmt.Sprintf("The change could not be saved: %v", err)
}
