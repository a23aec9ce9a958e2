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

package database

import (
	"maps"
	"sort"
	gotime "time"

	"github.com/yorkie-team/tandem/api/types"
)

// SessionInfo is a structure representing information of a session.
type SessionInfo struct {
	// Key is the unique key of the session.
	Key string `bson:"key"`

	// Channels maps channel names to their content.
	Channels map[string]string `bson:"channels"`

	// LastEditorID is the ID of the participant who saved last.
	LastEditorID string `bson:"last_editor_id"`

	// LastEditedAt is the time of the last successful save.
	LastEditedAt gotime.Time `bson:"last_edited_at"`

	// LastActiveAt is the time of the last activity. Records written before
	// this field existed have it zero; see ActiveAt.
	LastActiveAt gotime.Time `bson:"last_active_at"`

	// SaveCount is the number of saves in the current rate-limit window.
	SaveCount int `bson:"save_count"`

	// TotalSizeBytes is the sum of the sizes of all channels.
	TotalSizeBytes int64 `bson:"total_size_bytes"`

	// CreatedAt is the time when the session was first saved.
	CreatedAt gotime.Time `bson:"created_at"`
}

// NewSessionInfo returns a session that has never been saved.
func NewSessionInfo(key string) *SessionInfo {
	return &SessionInfo{
		Key:      key,
		Channels: make(map[string]string),
	}
}

// ActiveAt returns the effective last activity. LastEditedAt stands in for
// records that predate LastActiveAt.
func (i *SessionInfo) ActiveAt() gotime.Time {
	if i.LastActiveAt.IsZero() {
		return i.LastEditedAt
	}
	return i.LastActiveAt
}

// IsStale returns whether the session has been inactive since before the
// given time.
func (i *SessionInfo) IsStale(before gotime.Time) bool {
	return i.ActiveAt().Before(before)
}

// IsNew returns whether the session has never been saved.
func (i *SessionInfo) IsNew() bool {
	return i.CreatedAt.IsZero()
}

// ApplySave patches the given channels into the session and updates the
// bookkeeping fields of a successful save. The save counter restarts at 1
// when the previous save is outside the window.
func (i *SessionInfo) ApplySave(
	channels []types.Channel,
	editorID string,
	now gotime.Time,
	window gotime.Duration,
) {
	if i.Channels == nil {
		i.Channels = make(map[string]string, len(channels))
	}

	if i.IsNew() {
		i.CreatedAt = now
		i.SaveCount = 1
	} else if now.Sub(i.LastEditedAt) >= window {
		i.SaveCount = 1
	} else {
		i.SaveCount++
	}

	for _, ch := range channels {
		i.Channels[ch.Name] = ch.Content
	}

	var total int64
	for _, content := range i.Channels {
		total += int64(len(content))
	}

	i.LastEditorID = editorID
	i.LastEditedAt = now
	i.LastActiveAt = now
	i.TotalSizeBytes = total
}

// SizeAfter returns the total size the session would have after saving the
// given channels.
func (i *SessionInfo) SizeAfter(channels []types.Channel) int64 {
	submitted := make(map[string]bool, len(channels))
	var total int64
	for _, ch := range channels {
		submitted[ch.Name] = true
		total += int64(ch.Size())
	}
	for name, content := range i.Channels {
		if !submitted[name] {
			total += int64(len(content))
		}
	}
	return total
}

// ToView converts the session into its read model. Channels listed in names
// come first in that order, followed by any other stored channel.
func (i *SessionInfo) ToView(names []string) *types.SessionView {
	channels := make([]types.Channel, 0, len(names)+len(i.Channels))
	listed := make(map[string]bool, len(names))
	for _, name := range names {
		listed[name] = true
		channels = append(channels, types.Channel{Name: name, Content: i.Channels[name]})
	}

	var extra []string
	for name := range i.Channels {
		if !listed[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		channels = append(channels, types.Channel{Name: name, Content: i.Channels[name]})
	}

	return &types.SessionView{
		Key:          i.Key,
		Channels:     channels,
		LastEditorID: i.LastEditorID,
		LastEditedAt: i.LastEditedAt,
		LastActiveAt: i.ActiveAt(),
		SaveCount:    i.SaveCount,
		TotalSize:    int(i.TotalSizeBytes),
		CreatedAt:    i.CreatedAt,
		Persisted:    true,
	}
}

// DeepCopy returns a deep copy of this session info.
func (i *SessionInfo) DeepCopy() *SessionInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.Channels = maps.Clone(i.Channels)
	if clone.Channels == nil {
		clone.Channels = make(map[string]string)
	}
	return &clone
}
