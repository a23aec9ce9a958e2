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

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/tandem/pkg/cache"
)

func TestExpirableLRU(t *testing.T) {
	t.Run("invalid size test", func(t *testing.T) {
		c, err := cache.NewExpirableLRU[string, int](0, time.Minute, "sessions")
		assert.ErrorIs(t, err, cache.ErrInvalidMaxSize)
		assert.Nil(t, c)
	})

	t.Run("hit and miss statistics test", func(t *testing.T) {
		c, err := cache.NewExpirableLRU[string, int](2, time.Minute, "sessions")
		require.NoError(t, err)
		assert.Equal(t, "sessions", c.Name())

		c.Add("a", 1)
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("b")
		assert.False(t, ok)

		assert.Equal(t, int64(1), c.Stats().Hits())
		assert.Equal(t, int64(1), c.Stats().Misses())
		assert.Equal(t, 50.0, c.Stats().HitRate())
	})

	t.Run("eviction by size test", func(t *testing.T) {
		c, err := cache.NewExpirableLRU[string, int](1, time.Minute, "sessions")
		require.NoError(t, err)

		c.Add("a", 1)
		assert.True(t, c.Add("b", 2))
		assert.False(t, c.Contains("a"))
		assert.Equal(t, int64(1), c.Stats().Evictions())
	})

	t.Run("removal is not an eviction test", func(t *testing.T) {
		c, err := cache.NewExpirableLRU[string, int](4, time.Minute, "sessions")
		require.NoError(t, err)

		c.Add("a", 1)
		c.Add("b", 2)
		assert.True(t, c.Remove("a"))
		assert.False(t, c.Remove("a"))
		c.Purge()
		assert.Equal(t, 0, c.Len())
		assert.Equal(t, int64(0), c.Stats().Evictions())
	})

	t.Run("expiry test", func(t *testing.T) {
		c, err := cache.NewExpirableLRU[string, int](1, 10*time.Millisecond, "sessions")
		require.NoError(t, err)

		c.Add("a", 1)
		assert.Eventually(t, func() bool {
			_, ok := c.Get("a")
			return !ok
		}, time.Second, 5*time.Millisecond)
	})
}
