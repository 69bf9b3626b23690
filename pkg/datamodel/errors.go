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

import "fmt"

// StorageError wraps a failure of the durable mutation store. These are never
// fatal: the caller degrades to in-memory queuing for the session and warns
// the user layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("mutation store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NetworkError wraps a failed request execution. Transient by assumption:
// retried on the next connectivity transition, not immediately.
type NetworkError struct {
	Target string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request to %s failed with status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("request to %s failed: %v", e.Target, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
