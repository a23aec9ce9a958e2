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

package presence

import (
	"sync"

	"github.com/yorkie-team/tandem/pkg/awareness"
)

// Aggregator keeps the presence list of an awareness store up to date. The
// list is recomputed wholesale inside every change notification.
type Aggregator struct {
	store awareness.Store

	mu      sync.RWMutex
	version uint64
	list    List

	subsMu sync.Mutex
	subs   []func(List)

	unsubscribe func()
}

// NewAggregator creates an Aggregator bound to the given store.
func NewAggregator(store awareness.Store) *Aggregator {
	a := &Aggregator{store: store}
	a.unsubscribe = store.Subscribe(a.onChange)
	a.onChange()
	return a
}

// Participants returns the current presence list.
func (a *Aggregator) Participants() List {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.list
}

// Count returns the number of visible participants.
func (a *Aggregator) Count() int {
	return a.Participants().Count()
}

// Local returns the record of the local participant.
func (a *Aggregator) Local() (Participant, bool) {
	return a.Participants().Local()
}

// Subscribe registers a function called with every new presence list.
func (a *Aggregator) Subscribe(fn func(List)) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	a.subs = append(a.subs, fn)
}

// Close detaches the aggregator from the store.
func (a *Aggregator) Close() {
	a.unsubscribe()
}

func (a *Aggregator) onChange() {
	snap := a.store.Snapshot()
	list := Recompute(snap.States, a.store.LocalID())

	a.mu.Lock()
	if a.list != nil && snap.Version < a.version {
		a.mu.Unlock()
		return
	}
	a.version = snap.Version
	a.list = list
	a.mu.Unlock()

	a.subsMu.Lock()
	subs := append([]func(List){}, a.subs...)
	a.subsMu.Unlock()

	for _, fn := range subs {
		fn(list)
	}
}
