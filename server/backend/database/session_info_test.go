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

package database_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/server/backend/database"
)

func TestSessionInfo(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	t.Run("first save initializes the record test", func(t *testing.T) {
		info := database.NewSessionInfo("k")
		assert.True(t, info.IsNew())

		info.ApplySave([]types.Channel{{Name: "html", Content: "<p>"}, {Name: "css", Content: "a{}"}}, "alice", now, window)

		assert.False(t, info.IsNew())
		assert.Equal(t, now, info.CreatedAt)
		assert.Equal(t, now, info.LastEditedAt)
		assert.Equal(t, now, info.LastActiveAt)
		assert.Equal(t, 1, info.SaveCount)
		assert.Equal(t, "alice", info.LastEditorID)
		assert.Equal(t, int64(6), info.TotalSizeBytes)
	})

	t.Run("save count grows inside the window and resets outside test", func(t *testing.T) {
		info := database.NewSessionInfo("k")
		info.ApplySave(nil, "a", now, window)
		info.ApplySave(nil, "a", now.Add(59*time.Second), window)
		assert.Equal(t, 2, info.SaveCount)

		info.ApplySave(nil, "a", now.Add(59*time.Second+window), window)
		assert.Equal(t, 1, info.SaveCount)
	})

	t.Run("channels are merged and total covers the whole record test", func(t *testing.T) {
		info := database.NewSessionInfo("k")
		info.ApplySave([]types.Channel{{Name: "html", Content: "1234"}, {Name: "js", Content: "12"}}, "a", now, window)
		info.ApplySave([]types.Channel{{Name: "js", Content: "1"}}, "b", now, window)

		assert.Equal(t, "1234", info.Channels["html"])
		assert.Equal(t, "1", info.Channels["js"])
		assert.Equal(t, int64(5), info.TotalSizeBytes)
		assert.Equal(t, "b", info.LastEditorID)
	})

	t.Run("size after matches the total of the saved record test", func(t *testing.T) {
		info := database.NewSessionInfo("k")
		assert.Equal(t, int64(3), info.SizeAfter([]types.Channel{{Name: "html", Content: "<p>"}}))

		info.ApplySave([]types.Channel{{Name: "html", Content: "1234"}, {Name: "css", Content: "12"}}, "a", now, window)
		next := []types.Channel{{Name: "css", Content: "123456"}, {Name: "js", Content: "1"}}
		size := info.SizeAfter(next)
		assert.Equal(t, int64(11), size)
		assert.Equal(t, int64(6), info.TotalSizeBytes)

		info.ApplySave(next, "a", now, window)
		assert.Equal(t, size, info.TotalSizeBytes)
	})

	t.Run("active at falls back to last edited at test", func(t *testing.T) {
		legacy := &database.SessionInfo{Key: "old", LastEditedAt: now}
		assert.Equal(t, now, legacy.ActiveAt())
		assert.True(t, legacy.IsStale(now.Add(time.Second)))
		assert.False(t, legacy.IsStale(now))

		legacy.LastActiveAt = now.Add(time.Hour)
		assert.Equal(t, now.Add(time.Hour), legacy.ActiveAt())
	})

	t.Run("view lists configured channels first test", func(t *testing.T) {
		info := database.NewSessionInfo("k")
		info.ApplySave([]types.Channel{{Name: "md", Content: "#"}, {Name: "css", Content: "a"}}, "a", now, window)

		view := info.ToView([]string{"html", "css", "js"})
		assert.True(t, view.Persisted)
		assert.Equal(t, []types.Channel{
			{Name: "html"},
			{Name: "css", Content: "a"},
			{Name: "js"},
			{Name: "md", Content: "#"},
		}, view.Channels)
	})

	t.Run("deep copy does not share channels test", func(t *testing.T) {
		info := database.NewSessionInfo("k")
		info.Channels["html"] = "a"

		clone := info.DeepCopy()
		clone.Channels["html"] = "b"
		assert.Equal(t, "a", info.Channels["html"])

		var nilInfo *database.SessionInfo
		assert.Nil(t, nilInfo.DeepCopy())
	})
}
