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

package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/yorkie-team/tandem/server/backend/background"
	"github.com/yorkie-team/tandem/server/backend/sync"
	"github.com/yorkie-team/tandem/server/logging"
)

const housekeepingKey = "housekeeping"

// Task is a unit of daily maintenance.
type Task func(ctx context.Context) error

// Housekeeping runs the registered tasks once a day at a fixed UTC hour.
type Housekeeping struct {
	hour    int
	clock   clock.Clock
	lockers *sync.LockerManager

	tasks []namedTask

	ctx        context.Context
	cancelFunc context.CancelFunc
}

type namedTask struct {
	name string
	run  Task
}

// New creates a new housekeeping instance.
func New(
	conf *Config,
	clk clock.Clock,
	lockers *sync.LockerManager,
) (*Housekeeping, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	return &Housekeeping{
		hour:       conf.Hour,
		clock:      clk,
		lockers:    lockers,
		ctx:        ctx,
		cancelFunc: cancelFunc,
	}, nil
}

// RegisterTask adds a task to the daily run. Tasks run in registration order.
func (h *Housekeeping) RegisterTask(name string, task Task) {
	h.tasks = append(h.tasks, namedTask{name: name, run: task})
}

// Start starts the daily loop as a background routine.
func (h *Housekeeping) Start(bg *background.Background) error {
	if !bg.AttachGoroutine(h.run, "housekeeping") {
		return fmt.Errorf("start housekeeping: backend closed")
	}
	return nil
}

// Stop stops the daily loop. A run in progress is canceled.
func (h *Housekeeping) Stop() error {
	h.cancelFunc()
	return nil
}

// NextRun returns the first moment strictly after now at which the UTC clock
// reads hour:00.
func NextRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (h *Housekeeping) run(ctx context.Context) {
	logger := logging.From(ctx)
	for {
		next := NextRun(h.clock.Now(), h.hour)
		logger.Debugf("HSKP: next run at %s", next.Format(time.RFC3339))

		timer := h.clock.Timer(next.Sub(h.clock.Now()))
		select {
		case <-timer.C:
		case <-h.ctx.Done():
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}

		if err := h.RunOnce(ctx); err != nil {
			logger.Errorf("HSKP: %v", err)
		}
	}
}

// RunOnce runs every registered task now, holding the housekeeping lock so
// runs in one process never overlap. A failing task does not stop the rest.
func (h *Housekeeping) RunOnce(ctx context.Context) error {
	locker := h.lockers.Locker(sync.NewKey(housekeepingKey))
	if err := locker.Lock(ctx); err != nil {
		return fmt.Errorf("lock housekeeping: %w", err)
	}
	defer func() {
		if err := locker.Unlock(); err != nil {
			logging.From(ctx).Error(err)
		}
	}()

	var firstErr error
	for _, task := range h.tasks {
		start := h.clock.Now()
		if err := task.run(ctx); err != nil {
			logging.From(ctx).Errorf("HSKP: %s failed: %v", task.name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", task.name, err)
			}
			continue
		}
		logging.From(ctx).Infof("HSKP: %s done, %s", task.name, h.clock.Since(start))
	}

	return firstErr
}
