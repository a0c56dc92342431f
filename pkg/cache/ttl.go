// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type ttlCacheItem[V any] struct {
	value  V
	expire time.Time
}

// TTL is a cache whose entries expire after a fixed duration unless they
// are put again. Expired entries are hidden from readers at once and
// removed by a background GC loop that lives as long as ctx.
type TTL[K comparable, V any] struct {
	sync.RWMutex
	ctx context.Context

	items      map[K]ttlCacheItem[V]
	ttl        time.Duration
	gcInterval time.Duration
	now        func() time.Time
}

// NewTTL returns a new TTL cache.
func NewTTL[K comparable, V any](ctx context.Context, gcInterval time.Duration, ttl time.Duration) *TTL[K, V] {
	c := &TTL[K, V]{
		ctx:        ctx,
		items:      make(map[K]ttlCacheItem[V]),
		ttl:        ttl,
		gcInterval: gcInterval,
		now:        time.Now,
	}

	go c.doGC()
	return c
}

// Put puts an item into cache.
func (c *TTL[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, c.ttl)
}

// PutWithTTL puts an item into cache with specified TTL.
func (c *TTL[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	c.Lock()
	defer c.Unlock()

	c.items[key] = ttlCacheItem[V]{
		value:  value,
		expire: c.now().Add(ttl),
	}
}

// Get retrives an item from cache.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	return c.Peek(key)
}

// Peek reads an item from cache without refreshing it.
func (c *TTL[K, V]) Peek(key K) (V, bool) {
	c.RLock()
	defer c.RUnlock()

	var zero V
	item, ok := c.items[key]
	if !ok {
		return zero, false
	}

	if item.expire.Before(c.now()) {
		return zero, false
	}

	return item.value, true
}

// Remove eliminates an item from cache.
func (c *TTL[K, V]) Remove(key K) {
	c.Lock()
	defer c.Unlock()

	delete(c.items, key)
}

// Elems returns all unexpired items in cache.
func (c *TTL[K, V]) Elems() []*Item[K, V] {
	c.RLock()
	defer c.RUnlock()

	now := c.now()
	elems := make([]*Item[K, V], 0, len(c.items))
	for k, item := range c.items {
		if item.expire.Before(now) {
			continue
		}
		elems = append(elems, &Item[K, V]{Key: k, Value: item.value})
	}
	return elems
}

// Len returns current cache size, including expired items not yet
// collected.
func (c *TTL[K, V]) Len() int {
	c.RLock()
	defer c.RUnlock()

	return len(c.items)
}

func (c *TTL[K, V]) doGC() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count := 0
			c.Lock()
			now := c.now()
			for key := range c.items {
				if value, ok := c.items[key]; ok {
					if value.expire.Before(now) {
						count++
						delete(c.items, key)
					}
				}
			}
			c.Unlock()
			log.Debug("TTL GC items", zap.Int("count", count))
		case <-c.ctx.Done():
			return
		}
	}
}

var _ Cache[uint64, int] = (*TTL[uint64, int])(nil)
