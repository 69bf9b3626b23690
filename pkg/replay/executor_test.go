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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

func TestHTTPExecutorSendsVerbAndBody(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL, 5*time.Second)
	err := e.Execute(context.Background(), "/invoices", datamodel.MethodCreate, json.RawMessage(`{"amount":12}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/invoices", gotPath)
	assert.Equal(t, `{"amount":12}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
}

func TestHTTPExecutorDeleteWithoutBody(t *testing.T) {
	var gotMethod, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL, 5*time.Second)
	require.NoError(t, e.Execute(context.Background(), "/invoices/7", datamodel.MethodDelete, nil))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Empty(t, gotContentType)
}

func TestHTTPExecutorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL, 5*time.Second)
	err := e.Execute(context.Background(), "/invoices", datamodel.MethodCreate, json.RawMessage(`{}`))

	var nerr *datamodel.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusBadGateway, nerr.Status)
	assert.Equal(t, "/invoices", nerr.Target)
}

func TestHTTPExecutorConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // port is now closed

	e := NewHTTPExecutor(srv.URL, time.Second)
	err := e.Execute(context.Background(), "/x", datamodel.MethodUpdate, json.RawMessage(`{}`))

	var nerr *datamodel.NetworkError
	assert.ErrorAs(t, err, &nerr)
}
