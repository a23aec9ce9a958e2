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

// Package limit provides event timing control components.
package limit

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttler runs a callback at most once per window. A call arriving inside
// the window schedules one trailing run, so the last event is never lost.
type Throttler struct {
	lim     *rate.Limiter
	pending atomic.Bool
}

// NewThrottler creates a new instance with the given window.
func NewThrottler(window time.Duration) *Throttler {
	return &Throttler{
		lim: rate.NewLimiter(rate.Every(window), 1),
	}
}

// ExecuteOrSchedule runs the callback now if the window allows it. Otherwise
// it schedules the callback for when the next token is available, unless a
// trailing run is already scheduled.
func (t *Throttler) ExecuteOrSchedule(callback func()) {
	if !t.pending.Load() && t.lim.Allow() {
		callback()
		return
	}

	if !t.pending.CompareAndSwap(false, true) {
		return
	}

	delay := t.lim.Reserve().Delay()
	time.AfterFunc(delay, func() {
		t.pending.Store(false)
		callback()
	})
}
