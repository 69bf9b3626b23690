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

// Package cache holds the shared keyed cache the reconciler mutates. Pages
// read it; the reconciler and the authoritative refetch path are its only
// writers.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EagleChen/mapmutex"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rentfolio/offlinesync/pkg/datamodel"
)

// KeyedCache is the cache capability the reconciler depends on.
type KeyedCache interface {
	Get(key string) (datamodel.CacheValue, bool)
	// Set atomically replaces the value at key with the result of update.
	// update receives the current value and whether one existed.
	Set(key string, update func(old datamodel.CacheValue, found bool) datamodel.CacheValue) error
	// Invalidate drops the entry so the next read triggers an authoritative
	// refetch.
	Invalidate(key string)
	// CancelInFlight aborts a background refetch for key, if one is
	// registered. Called before an optimistic write so a stale refetch
	// cannot overwrite the optimistic state.
	CancelInFlight(key string)
}

// MemCache is the default in-process KeyedCache. Entries never expire on
// their own; they leave the cache through Invalidate.
type MemCache struct {
	store    *gocache.Cache
	keyLocks *mapmutex.Mutex

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

func NewMemCache() *MemCache {
	return &MemCache{
		store:    gocache.New(gocache.NoExpiration, 10*time.Minute),
		keyLocks: mapmutex.NewCustomizedMapMutex(200, float64(100*time.Millisecond), float64(10*time.Nanosecond), 1.1, 0.2),
		inFlight: make(map[string]context.CancelFunc),
	}
}

func (c *MemCache) Get(key string) (datamodel.CacheValue, bool) {
	raw, found := c.store.Get(key)
	if !found {
		return datamodel.CacheValue{}, false
	}
	value, ok := raw.(datamodel.CacheValue)
	if !ok {
		zap.S().Warnf("Cache entry %s has unexpected type %T, treating as missing", key, raw)
		return datamodel.CacheValue{}, false
	}
	return value, true
}

func (c *MemCache) Set(key string, update func(old datamodel.CacheValue, found bool) datamodel.CacheValue) error {
	if !c.keyLocks.TryLock(key) {
		return fmt.Errorf("cache key %s is locked by a concurrent update", key)
	}
	defer c.keyLocks.Unlock(key)

	old, found := c.Get(key)
	c.store.SetDefault(key, update(old, found))
	return nil
}

func (c *MemCache) Invalidate(key string) {
	c.store.Delete(key)
}

// RegisterInFlight records the cancel function of a background refetch for
// key. The returned release function deregisters it; callers defer it around
// the refetch.
func (c *MemCache) RegisterInFlight(key string, cancel context.CancelFunc) (release func()) {
	c.mu.Lock()
	c.inFlight[key] = cancel
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}
}

func (c *MemCache) CancelInFlight(key string) {
	c.mu.Lock()
	cancel, ok := c.inFlight[key]
	if ok {
		delete(c.inFlight, key)
	}
	c.mu.Unlock()

	if ok {
		zap.S().Debugf("Cancelled in-flight refetch for cache key %s", key)
		cancel()
	}
}
