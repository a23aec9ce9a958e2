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

// Package background tracks the goroutines the backend starts, so that
// closing the backend waits for them to finish.
package background

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/yorkie-team/tandem/server/logging"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
)

type routineID int32

func (c *routineID) next() string {
	next := atomic.AddInt32((*int32)(c), 1)
	return "b" + strconv.Itoa(int(next))
}

// Background manages the background routines of the backend.
type Background struct {
	// closing is closed when the backend starts closing. Routines watch it
	// through the context they are given.
	closing chan struct{}

	// wgMu blocks attaching while Close is waiting.
	wgMu sync.RWMutex
	wg   sync.WaitGroup

	routineID routineID
	metrics   *prometheus.Metrics
}

// New creates a new background service.
func New(metrics *prometheus.Metrics) *Background {
	return &Background{
		closing: make(chan struct{}),
		metrics: metrics,
	}
}

// AttachGoroutine runs f in a goroutine tracked by the background. The
// context given to f carries a routine logger and is canceled on Close.
func (b *Background) AttachGoroutine(
	f func(ctx context.Context),
	taskType string,
) bool {
	b.wgMu.RLock()
	defer b.wgMu.RUnlock()
	select {
	case <-b.closing:
		logging.DefaultLogger().Warnf("backend has closed; skipping %s", taskType)
		return false
	default:
	}

	b.wg.Add(1)
	routineLogger := logging.New(b.routineID.next(), logging.NewField("task", taskType))
	if b.metrics != nil {
		b.metrics.AddBackgroundGoroutines(taskType)
	}

	ctx, cancel := context.WithCancel(logging.With(context.Background(), routineLogger))
	go func() {
		select {
		case <-b.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		defer func() {
			cancel()
			b.wg.Done()
			if b.metrics != nil {
				b.metrics.RemoveBackgroundGoroutines(taskType)
			}
		}()
		f(ctx)
	}()
	return true
}

// Close cancels the routines and waits for them to exit.
func (b *Background) Close() {
	b.wgMu.Lock()
	select {
	case <-b.closing:
	default:
		close(b.closing)
	}
	b.wgMu.Unlock()

	b.wg.Wait()
}
