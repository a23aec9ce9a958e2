/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides a size-bounded, expiring LRU cache that keeps hit,
// miss and eviction statistics.
package cache

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrInvalidMaxSize is returned when the given max size is not positive.
var ErrInvalidMaxSize = errors.New("max size must be greater than 0")

// ExpirableLRU is a wrapper over hashicorp's expirable LRU with statistics.
type ExpirableLRU[K comparable, V any] struct {
	cache *expirable.LRU[K, V]
	stats *Stats
	name  string
}

// NewExpirableLRU creates a new cache holding at most size entries, each for
// at most ttl. A zero ttl keeps entries until they are evicted.
func NewExpirableLRU[K comparable, V any](
	size int,
	ttl time.Duration,
	name string,
) (*ExpirableLRU[K, V], error) {
	if size <= 0 {
		return nil, ErrInvalidMaxSize
	}

	stats := &Stats{}
	onEvict := func(K, V) {
		atomic.AddInt64(&stats.evictions, 1)
	}

	return &ExpirableLRU[K, V]{
		cache: expirable.NewLRU[K, V](size, onEvict, ttl),
		stats: stats,
		name:  name,
	}, nil
}

// Get returns the value of the key and records a hit or a miss.
func (c *ExpirableLRU[K, V]) Get(key K) (V, bool) {
	value, ok := c.cache.Get(key)
	if ok {
		atomic.AddInt64(&c.stats.hits, 1)
	} else {
		atomic.AddInt64(&c.stats.misses, 1)
	}
	return value, ok
}

// Add adds or replaces the value of the key. It returns true if an older
// entry was evicted to make room.
func (c *ExpirableLRU[K, V]) Add(key K, value V) bool {
	return c.cache.Add(key, value)
}

// Contains reports whether the key is cached, without touching statistics.
func (c *ExpirableLRU[K, V]) Contains(key K) bool {
	return c.cache.Contains(key)
}

// Remove removes the key. Removals are not counted as evictions.
func (c *ExpirableLRU[K, V]) Remove(key K) bool {
	if !c.cache.Contains(key) {
		return false
	}
	ok := c.cache.Remove(key)
	if ok {
		atomic.AddInt64(&c.stats.evictions, -1)
	}
	return ok
}

// Purge clears all entries.
func (c *ExpirableLRU[K, V]) Purge() {
	n := int64(c.cache.Len())
	c.cache.Purge()
	atomic.AddInt64(&c.stats.evictions, -n)
}

// Len returns the number of entries.
func (c *ExpirableLRU[K, V]) Len() int {
	return c.cache.Len()
}

// Stats returns the statistics of the cache.
func (c *ExpirableLRU[K, V]) Stats() *Stats {
	return c.stats
}

// Name returns the cache name.
func (c *ExpirableLRU[K, V]) Name() string {
	return c.name
}
