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

// Package colors assigns each participant of a session a color that no other
// visible participant uses, as long as the palette allows it.
package colors

import (
	"sync"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/pkg/palette"
)

// bookkeeping is the color state of one session.
type bookkeeping struct {
	colors map[types.ConnectionID]palette.Color
	usage  map[palette.Color]int
}

func newBookkeeping() *bookkeeping {
	return &bookkeeping{
		colors: make(map[types.ConnectionID]palette.Color),
		usage:  make(map[palette.Color]int),
	}
}

// Stats is a point-in-time view of the manager for metrics.
type Stats struct {
	Sessions    int
	Connections int
}

// Manager owns the color bookkeeping of every session served by this
// process. Uniqueness is only guaranteed among the participants this process
// can observe.
type Manager struct {
	palette palette.Palette

	mu       sync.Mutex
	sessions map[string]*bookkeeping
}

// NewManager creates a new instance of Manager. An empty palette falls back
// to palette.Default.
func NewManager(p palette.Palette) *Manager {
	if len(p) == 0 {
		p = palette.Default
	}

	return &Manager{
		palette:  p,
		sessions: make(map[string]*bookkeeping),
	}
}

// Assign returns the color of the given connection. The first call for a
// connection resolves a color in this order: the candidate when nobody else
// uses it, the first unused color of the palette, and finally the least used
// color with the earliest palette entry winning ties. Later calls return the
// recorded color.
//
// remote holds the colors of participants observed through the replicated
// state, keyed by connection. Entries for connections this manager already
// tracks are counted once.
func (m *Manager) Assign(
	sessionKey string,
	id types.ConnectionID,
	candidate palette.Color,
	remote map[types.ConnectionID]palette.Color,
) palette.Color {
	m.mu.Lock()
	defer m.mu.Unlock()

	bk, ok := m.sessions[sessionKey]
	if !ok {
		bk = newBookkeeping()
		m.sessions[sessionKey] = bk
	}

	if color, ok := bk.colors[id]; ok {
		return color
	}

	usage := m.visibleUsage(bk, id, remote)
	color := m.resolve(candidate, usage)

	bk.colors[id] = color
	bk.usage[color]++
	return color
}

// Release forgets the color of the given connection. The bookkeeping of the
// session is dropped together with its last connection.
func (m *Manager) Release(sessionKey string, id types.ConnectionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bk, ok := m.sessions[sessionKey]
	if !ok {
		return
	}

	color, ok := bk.colors[id]
	if !ok {
		return
	}

	delete(bk.colors, id)
	if bk.usage[color] <= 1 {
		delete(bk.usage, color)
	} else {
		bk.usage[color]--
	}

	if len(bk.colors) == 0 {
		delete(m.sessions, sessionKey)
	}
}

// Palette returns the palette colors are taken from.
func (m *Manager) Palette() palette.Palette {
	return m.palette
}

// ColorOf returns the recorded color of the given connection.
func (m *Manager) ColorOf(sessionKey string, id types.ConnectionID) (palette.Color, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bk, ok := m.sessions[sessionKey]
	if !ok {
		return "", false
	}
	color, ok := bk.colors[id]
	return color, ok
}

// Stats returns the number of tracked sessions and connections.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Sessions: len(m.sessions)}
	for _, bk := range m.sessions {
		stats.Connections += len(bk.colors)
	}
	return stats
}

// visibleUsage counts how many participants other than id use each color.
func (m *Manager) visibleUsage(
	bk *bookkeeping,
	id types.ConnectionID,
	remote map[types.ConnectionID]palette.Color,
) map[palette.Color]int {
	usage := make(map[palette.Color]int, len(bk.usage)+len(remote))
	for color, n := range bk.usage {
		usage[color] = n
	}

	for connID, color := range remote {
		if connID == id || color == "" {
			continue
		}
		if _, tracked := bk.colors[connID]; tracked {
			continue
		}
		usage[color]++
	}

	return usage
}

func (m *Manager) resolve(candidate palette.Color, usage map[palette.Color]int) palette.Color {
	if m.palette.Contains(candidate) && usage[candidate] == 0 {
		return candidate
	}

	for _, color := range m.palette {
		if usage[color] == 0 {
			return color
		}
	}

	least := m.palette[0]
	for _, color := range m.palette[1:] {
		if usage[color] < usage[least] {
			least = color
		}
	}
	return least
}
