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

package awareness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/pkg/awareness"
)

func TestMap(t *testing.T) {
	t.Run("set local state uses local id test", func(t *testing.T) {
		m := awareness.NewMap(7)
		assert.Equal(t, types.ConnectionID(7), m.LocalID())
		m.SetLocalState(types.ParticipantState{ConnectionID: 99, DisplayName: "alice"})

		s, ok := m.Get(7)
		assert.True(t, ok)
		assert.Equal(t, "alice", s.DisplayName)
		_, ok = m.Get(99)
		assert.False(t, ok)
	})

	t.Run("listeners are notified on every change test", func(t *testing.T) {
		m := awareness.NewMap(1)
		calls := 0
		unsubscribe := m.Subscribe(func() { calls++ })

		m.Set(types.ParticipantState{ConnectionID: 2})
		m.Remove(2)
		m.Remove(2)
		m.Replace([]types.ParticipantState{{ConnectionID: 3}, {ConnectionID: 4}})
		assert.Equal(t, 3, calls)

		unsubscribe()
		unsubscribe()
		m.Set(types.ParticipantState{ConnectionID: 5})
		assert.Equal(t, 3, calls)
	})

	t.Run("snapshot is a copy with a growing version test", func(t *testing.T) {
		m := awareness.NewMap(0)
		m.Set(types.ParticipantState{ConnectionID: 2, DisplayName: "bob"})
		first := m.Snapshot()

		m.Set(types.ParticipantState{ConnectionID: 3, DisplayName: "carol"})
		second := m.Snapshot()

		assert.Len(t, first.States, 1)
		assert.Len(t, second.States, 2)
		assert.Greater(t, second.Version, first.Version)

		delete(second.States, 2)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("list is ordered by connection id test", func(t *testing.T) {
		m := awareness.NewMap(0)
		m.Replace([]types.ParticipantState{{ConnectionID: 9}, {ConnectionID: 2}, {ConnectionID: 5}})

		list := m.List()
		assert.Equal(t, types.ConnectionID(2), list[0].ConnectionID)
		assert.Equal(t, types.ConnectionID(5), list[1].ConnectionID)
		assert.Equal(t, types.ConnectionID(9), list[2].ConnectionID)
	})
}
