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

package limit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Keyed is a set of token buckets, one per key. Keys idle for longer than
// the TTL are forgotten and start again with a full bucket.
type Keyed[K comparable] struct {
	limit rate.Limit
	burst int

	mu   sync.Mutex
	lims *expirable.LRU[K, *rate.Limiter]
}

// NewKeyed creates a Keyed that allows burst events at once and one more
// every interval, per key. At most size keys are tracked.
func NewKeyed[K comparable](size int, ttl, interval time.Duration, burst int) *Keyed[K] {
	return &Keyed[K]{
		limit: rate.Every(interval),
		burst: burst,
		lims:  expirable.NewLRU[K, *rate.Limiter](size, nil, ttl),
	}
}

// Allow reports whether an event for the given key may happen now.
func (k *Keyed[K]) Allow(key K) bool {
	return k.limiter(key).Allow()
}

// limiter returns the bucket of the key, creating it on first use.
func (k *Keyed[K]) limiter(key K) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	lim, ok := k.lims.Get(key)
	if !ok {
		lim = rate.NewLimiter(k.limit, k.burst)
		k.lims.Add(key, lim)
	}
	return lim
}

// Len returns the number of tracked keys.
func (k *Keyed[K]) Len() int {
	return k.lims.Len()
}
