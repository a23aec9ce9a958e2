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

// Package awareness provides the replicated participant state of a session:
// every participant publishes a small state and observes the states of the
// others through change notifications.
package awareness

import (
	"maps"
	"sort"
	"sync"

	"github.com/yorkie-team/tandem/api/types"
)

// Listener is called after every change of the store. It runs synchronously
// in the goroutine that made the change and must not block.
type Listener func()

// Snapshot is a point-in-time copy of every participant state. Version grows
// by one with each change so that observers can discard stale snapshots.
type Snapshot struct {
	Version uint64
	States  map[types.ConnectionID]types.ParticipantState
}

// Store is the replicated participant state as seen from one connection.
type Store interface {
	// LocalID returns the connection ID of the local participant. It is 0
	// for observers that are not participants themselves.
	LocalID() types.ConnectionID

	// SetLocalState publishes the state of the local participant.
	SetLocalState(state types.ParticipantState)

	// Snapshot returns the current states.
	Snapshot() Snapshot

	// Subscribe registers a listener and returns the function removing it.
	Subscribe(listener Listener) (unsubscribe func())
}

// Map is an in-process Store. The awareness relay keeps one per session and
// the client keeps one mirroring the relay broadcasts.
type Map struct {
	localID types.ConnectionID

	mu      sync.RWMutex
	version uint64
	states  map[types.ConnectionID]types.ParticipantState

	listenerMu     sync.Mutex
	listeners      map[int]Listener
	nextListenerID int
}

// NewMap creates a new instance of Map.
func NewMap(localID types.ConnectionID) *Map {
	return &Map{
		localID:   localID,
		states:    make(map[types.ConnectionID]types.ParticipantState),
		listeners: make(map[int]Listener),
	}
}

// LocalID returns the connection ID of the local participant.
func (m *Map) LocalID() types.ConnectionID {
	return m.localID
}

// SetLocalState publishes the state of the local participant.
func (m *Map) SetLocalState(state types.ParticipantState) {
	state.ConnectionID = m.LocalID()
	m.Set(state)
}

// Set stores the state of the participant identified by state.ConnectionID.
func (m *Map) Set(state types.ParticipantState) {
	m.mu.Lock()
	m.states[state.ConnectionID] = state
	m.version++
	m.mu.Unlock()

	m.notify()
}

// Remove drops the state of the given connection. It reports whether a
// state was present.
func (m *Map) Remove(id types.ConnectionID) bool {
	m.mu.Lock()
	_, ok := m.states[id]
	if ok {
		delete(m.states, id)
		m.version++
	}
	m.mu.Unlock()

	if ok {
		m.notify()
	}
	return ok
}

// Replace swaps every state at once with the given ones.
func (m *Map) Replace(states []types.ParticipantState) {
	next := make(map[types.ConnectionID]types.ParticipantState, len(states))
	for _, s := range states {
		next[s.ConnectionID] = s
	}

	m.mu.Lock()
	m.states = next
	m.version++
	m.mu.Unlock()

	m.notify()
}

// Get returns the state of the given connection.
func (m *Map) Get(id types.ConnectionID) (types.ParticipantState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	return s, ok
}

// Len returns the number of states.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Snapshot returns the current states.
func (m *Map) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Version: m.version, States: maps.Clone(m.states)}
}

// List returns the current states ordered by connection ID.
func (m *Map) List() []types.ParticipantState {
	snap := m.Snapshot()
	list := make([]types.ParticipantState, 0, len(snap.States))
	for _, s := range snap.States {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ConnectionID < list[j].ConnectionID
	})
	return list
}

// Subscribe registers a listener and returns the function removing it.
func (m *Map) Subscribe(listener Listener) func() {
	m.listenerMu.Lock()
	id := m.nextListenerID
	m.nextListenerID++
	m.listeners[id] = listener
	m.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenerMu.Lock()
			delete(m.listeners, id)
			m.listenerMu.Unlock()
		})
	}
}

func (m *Map) notify() {
	m.listenerMu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.listenerMu.Unlock()

	for _, l := range listeners {
		l()
	}
}
