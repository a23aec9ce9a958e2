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

// Package autosave saves the content channels of an editor in the background.
//
// The first edit is saved right away. Later edits are debounced: each edit
// restarts the timer and the content is saved once no edit arrived for the
// debounce delay. A periodic save catches anything the debounce missed, and
// Close makes one last attempt. Content equal to what was last saved is
// never sent.
//
// The saver is a state machine:
//
//	idle               --edit-->          debouncePending (saving on the first edit)
//	debouncePending    --edit-->          debouncePending (timer restarted)
//	debouncePending    --timerFired-->    saving
//	saving             --saveSucceeded--> idle, or debouncePending if edited meanwhile
//	saving             --saveFailed-->    cooldownAfterError, or debouncePending
//	cooldownAfterError --edit-->          debouncePending
//
// A trigger that arrives while a save is in flight is skipped and saves in
// flight are never aborted. A skipped trigger re-arms the debounce once the
// save in flight finishes.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/api/types"
)

// ErrClosed is returned when the saver is used after Close.
var ErrClosed = errors.New("autosave: saver closed")

// ChannelReader returns the current content of every channel.
type ChannelReader func() []types.Channel

// SaveFunc stores the given channels. A returned error is treated as a
// persistence failure.
type SaveFunc func(ctx context.Context, channels []types.Channel) (*types.SaveResult, error)

// Status is the indicator shown to the user.
type Status string

// Below are the statuses of the saver.
const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// State is the state of the saver.
type State int

// Below are the states of the saver.
const (
	StateIdle State = iota
	StateDebouncePending
	StateSaving
	StateCooldownAfterError
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateDebouncePending:
		return "debouncePending"
	case StateSaving:
		return "saving"
	case StateCooldownAfterError:
		return "cooldownAfterError"
	}
	return "idle"
}

// Saver saves the channels of one editor.
type Saver struct {
	read ChannelReader
	save SaveFunc
	opts Options

	clock  clock.Clock
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	status      Status
	lastErr     *types.SaveError
	statusGen   uint64
	lastSaved   map[string]string
	firstDone   bool
	dirty       bool
	closed      bool
	debounce    *clock.Timer
	statusTimer *clock.Timer

	inflight   sync.WaitGroup
	tickerStop chan struct{}
	tickerDone chan struct{}
}

// New creates a new saver. It does not save anything until Edit or Start.
func New(read ChannelReader, save SaveFunc, opts ...Option) *Saver {
	o := newOptions(opts)

	lastSaved := make(map[string]string, len(o.Baseline))
	for _, ch := range o.Baseline {
		lastSaved[ch.Name] = ch.Content
	}

	return &Saver{
		read:      read,
		save:      save,
		opts:      o,
		clock:     o.Clock,
		logger:    o.Logger,
		state:     StateIdle,
		status:    StatusIdle,
		lastSaved: lastSaved,
	}
}

// Start starts the periodic save.
func (s *Saver) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.tickerStop != nil {
		return
	}

	s.tickerStop = make(chan struct{})
	s.tickerDone = make(chan struct{})
	ticker := s.clock.Ticker(s.opts.Interval)

	go func() {
		defer close(s.tickerDone)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.trigger()
			case <-s.tickerStop:
				return
			}
		}
	}()
}

// Edit reports that the content changed.
func (s *Saver) Edit() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if !s.firstDone {
		s.firstDone = true
		s.inflight.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.inflight.Done()
			s.run()
		}()
		return
	}

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = s.clock.AfterFunc(s.opts.Debounce, s.onDebounce)
	if s.state != StateSaving {
		s.state = StateDebouncePending
	}
	s.mu.Unlock()
}

// Flush saves now and returns the failure, if any. It returns nil without
// saving when nothing changed or a save is already in flight.
func (s *Saver) Flush(ctx context.Context) error {
	if !s.acquire() {
		return ErrClosed
	}
	defer s.inflight.Done()

	return s.saveNow(ctx)
}

// Close stops the timers, waits for a save in flight and makes one final
// save. The final save is not retried.
func (s *Saver) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	stop, done := s.tickerStop, s.tickerDone
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	s.inflight.Wait()

	return s.saveNow(ctx)
}

// Status returns the current status and, while it is StatusError, the
// failure that caused it.
func (s *Saver) Status() (Status, *types.SaveError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// State returns the current state.
func (s *Saver) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Saver) onDebounce() {
	s.mu.Lock()
	s.debounce = nil
	s.mu.Unlock()

	s.trigger()
}

// acquire registers a save with Close unless the saver is closed. Every
// acquired save must call inflight.Done.
func (s *Saver) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.inflight.Add(1)
	return true
}

// trigger runs a save from a timer, logging the failure.
func (s *Saver) trigger() {
	if !s.acquire() {
		return
	}
	defer s.inflight.Done()

	s.run()
}

func (s *Saver) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()

	if err := s.saveNow(ctx); err != nil {
		s.logger.Warn("autosave failed", zap.Error(err))
	}
}

// saveNow sends the channels that differ from the last saved content.
func (s *Saver) saveNow(ctx context.Context) error {
	channels := s.read()

	s.mu.Lock()
	if s.state == StateSaving {
		s.dirty = true
		s.mu.Unlock()
		return nil
	}

	changed := s.changed(channels)
	if len(changed) == 0 {
		if s.state == StateDebouncePending && s.debounce == nil {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return nil
	}

	s.firstDone = true
	s.dirty = false
	s.state = StateSaving
	notify := s.setStatus(StatusSaving, nil, 0)
	s.mu.Unlock()
	notify()

	result, err := s.save(ctx, changed)
	saveErr := toSaveError(result, err)

	s.mu.Lock()
	if s.dirty && s.debounce == nil && !s.closed {
		s.debounce = s.clock.AfterFunc(s.opts.Debounce, s.onDebounce)
	}
	s.dirty = false

	next := StateIdle
	if s.debounce != nil {
		next = StateDebouncePending
	}

	if saveErr == nil {
		for _, ch := range changed {
			s.lastSaved[ch.Name] = ch.Content
		}
		s.state = next
		notify = s.setStatus(StatusSaved, nil, s.opts.SavedDisplay)
		s.mu.Unlock()
		notify()
		return nil
	}

	if next == StateIdle {
		next = StateCooldownAfterError
	}
	s.state = next
	notify = s.setStatus(StatusError, saveErr, s.opts.ErrorDisplay)
	s.mu.Unlock()
	notify()
	return saveErr
}

// changed returns the channels whose content differs from the last save. A
// channel never saved counts as empty.
func (s *Saver) changed(channels []types.Channel) []types.Channel {
	var changed []types.Channel
	for _, ch := range channels {
		if s.lastSaved[ch.Name] != ch.Content {
			changed = append(changed, ch)
		}
	}
	return changed
}

// setStatus changes the status and, for a positive display duration, arms
// the timer that returns it to idle. It must be called with the lock held;
// the returned function notifies the listener and must be called after
// unlocking.
func (s *Saver) setStatus(status Status, err *types.SaveError, display time.Duration) func() {
	s.status = status
	s.lastErr = err
	s.statusGen++

	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
	if display > 0 {
		gen := s.statusGen
		s.statusTimer = s.clock.AfterFunc(display, func() {
			s.expireStatus(gen)
		})
	}

	listener := s.opts.OnStatus
	return func() {
		if listener != nil {
			listener(status, err)
		}
	}
}

func (s *Saver) expireStatus(gen uint64) {
	s.mu.Lock()
	if gen != s.statusGen {
		s.mu.Unlock()
		return
	}
	if s.state == StateCooldownAfterError {
		s.state = StateIdle
	}
	notify := s.setStatus(StatusIdle, nil, 0)
	s.mu.Unlock()
	notify()
}

func toSaveError(result *types.SaveResult, err error) *types.SaveError {
	if err != nil {
		return &types.SaveError{Kind: types.SaveErrPersistenceFailure, Detail: err.Error()}
	}
	if result == nil {
		return &types.SaveError{Kind: types.SaveErrPersistenceFailure, Detail: "empty save result"}
	}
	if !result.Success {
		if result.Error == nil {
			return &types.SaveError{Kind: types.SaveErrPersistenceFailure, Detail: "save failed"}
		}
		return result.Error
	}
	return nil
}
