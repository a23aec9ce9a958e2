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

package sync_test

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/tandem/server/backend/sync"
)

func TestLockerManager(t *testing.T) {
	t.Run("serializes the same key test", func(t *testing.T) {
		m := sync.New()
		key := sync.SessionKey("abc")

		counter := 0
		var wg gosync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l := m.Locker(key)
				assert.NoError(t, l.Lock(context.Background()))
				counter++
				assert.NoError(t, l.Unlock())
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})

	t.Run("lock gives up when the context is done test", func(t *testing.T) {
		m := sync.New()
		key := sync.NewKey("busy")

		holder := m.Locker(key)
		assert.NoError(t, holder.Lock(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, m.Locker(key).Lock(ctx), context.DeadlineExceeded)

		assert.NoError(t, holder.Unlock())

		// the abandoned waiter releases the lock once it gets it
		assert.Eventually(t, func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			l := m.Locker(key)
			if err := l.Lock(ctx); err != nil {
				return false
			}
			return l.Unlock() == nil
		}, time.Second, 10*time.Millisecond)
	})
}
