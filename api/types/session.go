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

// Package types provides the types used in the Tandem API. This package is
// used by both the server and the client.
package types

import (
	"time"
)

// Channel is one independently named text segment of a session, for example
// the HTML, CSS or JS source of a shared playground.
type Channel struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Size returns the size of the content in bytes.
func (c Channel) Size() int {
	return len(c.Content)
}

// SessionView is the read model of a session returned to clients.
type SessionView struct {
	Key          string    `json:"key"`
	Channels     []Channel `json:"channels"`
	LastEditorID string    `json:"lastEditorId"`
	LastEditedAt time.Time `json:"lastEditedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	SaveCount    int       `json:"saveCount"`
	TotalSize    int       `json:"totalSizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`

	// Persisted is false for the virtual default session returned for keys
	// that have never been saved.
	Persisted bool `json:"persisted"`
}

// NewDefaultSessionView returns the virtual session for a key that has never
// been saved. It is never written to storage.
func NewDefaultSessionView(key string, channelNames []string, now time.Time) *SessionView {
	channels := make([]Channel, 0, len(channelNames))
	for _, name := range channelNames {
		channels = append(channels, Channel{Name: name})
	}

	return &SessionView{
		Key:          key,
		Channels:     channels,
		LastEditorID: "",
		LastEditedAt: now,
	}
}

// Channel returns the channel of the given name.
func (v *SessionView) Channel(name string) (Channel, bool) {
	for _, ch := range v.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// SizeBreakdown is the per-channel byte size of a saved session.
type SizeBreakdown struct {
	PerChannel map[string]int `json:"perChannel"`
	Total      int            `json:"total"`
}

// NewSizeBreakdown computes the breakdown of the given channels.
func NewSizeBreakdown(channels []Channel) *SizeBreakdown {
	b := &SizeBreakdown{PerChannel: make(map[string]int, len(channels))}
	for _, ch := range channels {
		b.PerChannel[ch.Name] = ch.Size()
		b.Total += ch.Size()
	}
	return b
}

// SweepResult is the summary of a single sweep run.
type SweepResult struct {
	DeletedCount int            `json:"deletedCount" yaml:"deletedCount"`
	Keys         []string       `json:"keys" yaml:"keys"`
	Sessions     []SweptSession `json:"sessions" yaml:"sessions"`
	BytesFreed   int64          `json:"bytesFreed" yaml:"bytesFreed"`
	DryRun       bool           `json:"dryRun" yaml:"dryRun"`
}

// SweptSession is a session removed, or to be removed, by a sweep.
type SweptSession struct {
	Key          string    `json:"key" yaml:"key"`
	SizeBytes    int64     `json:"sizeBytes" yaml:"sizeBytes"`
	LastActiveAt time.Time `json:"lastActiveAt" yaml:"lastActiveAt"`
}
