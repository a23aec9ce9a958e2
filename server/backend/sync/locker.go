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

// Package sync provides per-key locks that serialize work on one session.
package sync

import (
	"context"
	"errors"

	"github.com/moby/locker"
)

// ErrAlreadyLocked is returned when the lock is already held.
var ErrAlreadyLocked = errors.New("already locked")

// Key represents the key of a Locker.
type Key string

// NewKey creates a new instance of Key.
func NewKey(key string) Key {
	return Key(key)
}

// SessionKey returns the lock key of the given session.
func SessionKey(sessionKey string) Key {
	return Key("session-" + sessionKey)
}

// String returns a string representation of this Key.
func (k Key) String() string {
	return string(k)
}

// LockerManager manages named lockers. Lockers of unused keys are released
// from memory.
type LockerManager struct {
	locks *locker.Locker
}

// New creates a new instance of LockerManager.
func New() *LockerManager {
	return &LockerManager{
		locks: locker.New(),
	}
}

// Locker returns the locker of the given key.
func (m *LockerManager) Locker(key Key) Locker {
	return &internalLocker{
		key:   key.String(),
		locks: m.locks,
	}
}

// A Locker represents an object that can be locked and unlocked.
type Locker interface {
	// Lock blocks until the lock is held or the context is done.
	Lock(ctx context.Context) error

	// Unlock releases the lock.
	Unlock() error
}

type internalLocker struct {
	key   string
	locks *locker.Locker
}

// Lock locks the mutex. moby/locker has no cancelable lock, so the wait
// happens in a goroutine that hands the lock back if the caller gave up.
func (il *internalLocker) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	acquired := make(chan struct{})
	go func() {
		il.locks.Lock(il.key)
		close(acquired)
	}()

	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		go func() {
			<-acquired
			_ = il.locks.Unlock(il.key)
		}()
		return ctx.Err()
	}
}

// Unlock unlocks the mutex.
func (il *internalLocker) Unlock() error {
	if err := il.locks.Unlock(il.key); err != nil {
		return err
	}
	return nil
}
