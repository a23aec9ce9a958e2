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

package housekeeping_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/tandem/server/backend/background"
	"github.com/yorkie-team/tandem/server/backend/housekeeping"
	"github.com/yorkie-team/tandem/server/backend/sync"
)

func newConfig() *housekeeping.Config {
	return &housekeeping.Config{
		Hour:            3,
		RetentionPeriod: "720h",
		CandidatesLimit: 100,
	}
}

func TestNextRun(t *testing.T) {
	t.Run("same day before the hour test", func(t *testing.T) {
		now := time.Date(2025, 5, 1, 1, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC), housekeeping.NextRun(now, 3))
	})

	t.Run("exactly at the hour moves to the next day test", func(t *testing.T) {
		now := time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 5, 2, 3, 0, 0, 0, time.UTC), housekeeping.NextRun(now, 3))
	})

	t.Run("non-UTC input test", func(t *testing.T) {
		seoul := time.FixedZone("KST", 9*60*60)
		now := time.Date(2025, 5, 1, 11, 0, 0, 0, seoul) // 02:00 UTC
		assert.Equal(t, time.Date(2025, 5, 1, 3, 0, 0, 0, time.UTC), housekeeping.NextRun(now, 3))
	})
}

func TestHousekeeping(t *testing.T) {
	t.Run("runs once a day at the hour test", func(t *testing.T) {
		clk := clock.NewMock()
		clk.Set(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))

		h, err := housekeeping.New(newConfig(), clk, sync.New())
		require.NoError(t, err)

		var runs int32
		h.RegisterTask("sweep", func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		})

		bg := background.New(nil)
		require.NoError(t, h.Start(bg))
		defer func() {
			assert.NoError(t, h.Stop())
			bg.Close()
		}()

		// wait for the loop to arm its timer before moving the clock
		time.Sleep(20 * time.Millisecond)
		clk.Add(2 * time.Hour)
		assert.Equal(t, int32(0), atomic.LoadInt32(&runs))

		clk.Add(time.Hour)
		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&runs) == 1
		}, time.Second, 5*time.Millisecond)

		time.Sleep(20 * time.Millisecond)
		clk.Add(24 * time.Hour)
		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&runs) == 2
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("a failing task does not stop the others test", func(t *testing.T) {
		h, err := housekeeping.New(newConfig(), clock.NewMock(), sync.New())
		require.NoError(t, err)

		errBoom := errors.New("boom")
		ran := false
		h.RegisterTask("broken", func(ctx context.Context) error { return errBoom })
		h.RegisterTask("sweep", func(ctx context.Context) error {
			ran = true
			return nil
		})

		assert.ErrorIs(t, h.RunOnce(context.Background()), errBoom)
		assert.True(t, ran)
	})

	t.Run("invalid config test", func(t *testing.T) {
		conf := newConfig()
		conf.Hour = -1
		_, err := housekeeping.New(conf, clock.NewMock(), sync.New())
		assert.Error(t, err)
	})
}
