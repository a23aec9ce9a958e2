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

// Package presence derives the ordered list of participants of a session
// from the replicated awareness states.
package presence

import (
	"sort"
	"strings"

	"github.com/yorkie-team/tandem/api/types"
)

// Participant is one entry of the presence list.
type Participant struct {
	ConnectionID types.ConnectionID
	DisplayName  string
	Avatar       types.AvatarPreference
	Color        string
	IsLocal      bool
}

// List is the ordered presence list: the local participant first, then the
// others by ascending connection ID.
type List []Participant

// Count returns the number of participants.
func (l List) Count() int {
	return len(l)
}

// Local returns the record of the local participant.
func (l List) Local() (Participant, bool) {
	if len(l) > 0 && l[0].IsLocal {
		return l[0], true
	}
	return Participant{}, false
}

// IDs returns the connection IDs in list order.
func (l List) IDs() []types.ConnectionID {
	ids := make([]types.ConnectionID, len(l))
	for i, p := range l {
		ids[i] = p.ConnectionID
	}
	return ids
}

// Recompute builds the presence list from scratch. States without a display
// name are skipped. The result never depends on map iteration order.
func Recompute(states map[types.ConnectionID]types.ParticipantState, localID types.ConnectionID) List {
	list := make(List, 0, len(states))
	for id, state := range states {
		name := strings.TrimSpace(state.DisplayName)
		if name == "" {
			continue
		}

		avatar := state.Avatar
		if avatar == "" {
			avatar = types.AvatarInitials
		}

		list = append(list, Participant{
			ConnectionID: id,
			DisplayName:  name,
			Avatar:       avatar,
			Color:        state.Color,
			IsLocal:      localID != 0 && id == localID,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].IsLocal != list[j].IsLocal {
			return list[i].IsLocal
		}
		return list[i].ConnectionID < list[j].ConnectionID
	})

	return list
}
