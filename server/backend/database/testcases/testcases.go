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

// Package testcases contains testcases for database. It is used by database
// implementations to test their own implementations with the same testcases.
package testcases

import (
	"context"
	"fmt"
	"strings"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/server/backend/database"
)

const window = gotime.Minute

// base is far enough in the past that no other test data is stale relative
// to it. Storage keeps millisecond precision.
var base = gotime.Date(2001, 2, 3, 4, 5, 6, 0, gotime.UTC)

func newSession(key string, editedAt gotime.Time, channels ...types.Channel) *database.SessionInfo {
	info := database.NewSessionInfo(key)
	info.ApplySave(channels, "editor", editedAt, window)
	return info
}

// RunFindSessionInfoByKeyTest runs the FindSessionInfoByKey test for the given db.
func RunFindSessionInfoByKeyTest(t *testing.T, db database.Database) {
	t.Run("find sessionInfo test", func(t *testing.T) {
		ctx := context.Background()
		key := fmt.Sprintf("%s-session", t.Name())

		_, err := db.FindSessionInfoByKey(ctx, key)
		assert.ErrorIs(t, err, database.ErrSessionNotFound)

		info := newSession(key, base, types.Channel{Name: "html", Content: "<p>hi</p>"})
		require.NoError(t, db.UpsertSessionInfo(ctx, info))

		found, err := db.FindSessionInfoByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, found.Key)
		assert.Equal(t, "<p>hi</p>", found.Channels["html"])
		assert.Equal(t, "editor", found.LastEditorID)
		assert.Equal(t, 1, found.SaveCount)
		assert.Equal(t, int64(9), found.TotalSizeBytes)
		assert.True(t, base.Equal(found.LastEditedAt))
		assert.True(t, base.Equal(found.LastActiveAt))
		assert.True(t, base.Equal(found.CreatedAt))
	})
}

// RunUpsertSessionInfoTest runs the UpsertSessionInfo test for the given db.
func RunUpsertSessionInfoTest(t *testing.T, db database.Database) {
	t.Run("upsert replaces the whole record test", func(t *testing.T) {
		ctx := context.Background()
		key := fmt.Sprintf("%s-session", t.Name())

		info := newSession(key, base,
			types.Channel{Name: "html", Content: "a"},
			types.Channel{Name: "css", Content: "b"},
		)
		require.NoError(t, db.UpsertSessionInfo(ctx, info))

		info.ApplySave([]types.Channel{{Name: "css", Content: "bbb"}}, "other", base.Add(gotime.Second), window)
		require.NoError(t, db.UpsertSessionInfo(ctx, info))

		found, err := db.FindSessionInfoByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"html": "a", "css": "bbb"}, found.Channels)
		assert.Equal(t, "other", found.LastEditorID)
		assert.Equal(t, 2, found.SaveCount)
		assert.Equal(t, int64(4), found.TotalSizeBytes)
		assert.True(t, base.Equal(found.CreatedAt))
	})

	t.Run("stored record is not aliased test", func(t *testing.T) {
		ctx := context.Background()
		key := fmt.Sprintf("%s-session", t.Name())

		info := newSession(key, base, types.Channel{Name: "js", Content: "1"})
		require.NoError(t, db.UpsertSessionInfo(ctx, info))
		info.Channels["js"] = "changed"

		found, err := db.FindSessionInfoByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "1", found.Channels["js"])
	})
}

// RunFindStaleSessionInfosTest runs the FindStaleSessionInfos test for the given db.
func RunFindStaleSessionInfosTest(t *testing.T, db database.Database) {
	t.Run("find stale sessions with paging test", func(t *testing.T) {
		ctx := context.Background()
		prefix := fmt.Sprintf("%s-", t.Name())
		before := base

		for i := 0; i < 5; i++ {
			stale := newSession(fmt.Sprintf("%s%d-stale", prefix, i), before.Add(-gotime.Hour))
			require.NoError(t, db.UpsertSessionInfo(ctx, stale))
		}
		fresh := newSession(prefix+"fresh", before)
		require.NoError(t, db.UpsertSessionInfo(ctx, fresh))

		var keys []string
		afterKey := prefix
		for {
			infos, err := db.FindStaleSessionInfos(ctx, before, afterKey, 2)
			require.NoError(t, err)
			if len(infos) == 0 {
				break
			}
			assert.LessOrEqual(t, len(infos), 2)
			for _, info := range infos {
				if strings.HasPrefix(info.Key, prefix) {
					keys = append(keys, info.Key)
				}
			}
			afterKey = infos[len(infos)-1].Key
		}

		assert.Equal(t, []string{
			prefix + "0-stale",
			prefix + "1-stale",
			prefix + "2-stale",
			prefix + "3-stale",
			prefix + "4-stale",
		}, keys)
	})

	t.Run("legacy records fall back to last edited at test", func(t *testing.T) {
		ctx := context.Background()
		prefix := fmt.Sprintf("%s-", t.Name())
		before := base

		legacy := newSession(prefix+"legacy", before.Add(-gotime.Hour))
		legacy.LastActiveAt = gotime.Time{}
		require.NoError(t, db.UpsertSessionInfo(ctx, legacy))

		revived := newSession(prefix+"revived", before.Add(-gotime.Hour))
		revived.LastActiveAt = before.Add(gotime.Hour)
		require.NoError(t, db.UpsertSessionInfo(ctx, revived))

		infos, err := db.FindStaleSessionInfos(ctx, before, prefix, 100)
		require.NoError(t, err)

		var keys []string
		for _, info := range infos {
			if strings.HasPrefix(info.Key, prefix) {
				keys = append(keys, info.Key)
			}
		}
		assert.Equal(t, []string{prefix + "legacy"}, keys)
	})
}

// RunDeleteSessionInfoIfStaleTest runs the DeleteSessionInfoIfStale test for the given db.
func RunDeleteSessionInfoIfStaleTest(t *testing.T, db database.Database) {
	t.Run("delete only stale sessions test", func(t *testing.T) {
		ctx := context.Background()
		key := fmt.Sprintf("%s-session", t.Name())

		info := newSession(key, base.Add(-gotime.Hour))
		require.NoError(t, db.UpsertSessionInfo(ctx, info))

		deleted, err := db.DeleteSessionInfoIfStale(ctx, key, base.Add(-2*gotime.Hour))
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = db.DeleteSessionInfoIfStale(ctx, key, base)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = db.FindSessionInfoByKey(ctx, key)
		assert.ErrorIs(t, err, database.ErrSessionNotFound)

		deleted, err = db.DeleteSessionInfoIfStale(ctx, key, base)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
