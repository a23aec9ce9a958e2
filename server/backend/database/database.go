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

// Package database provides the database interface for the Tandem backend.
package database

import (
	"context"
	gotime "time"

	"github.com/yorkie-team/tandem/pkg/errors"
)

var (
	// ErrSessionNotFound is returned when the session could not be found.
	ErrSessionNotFound = errors.NotFound("session not found").WithCode("ErrSessionNotFound")
)

// Database represents database which reads or saves sessions.
type Database interface {
	// Close all resources of this database.
	Close() error

	// FindSessionInfoByKey returns the session of the given key, or
	// ErrSessionNotFound.
	FindSessionInfoByKey(ctx context.Context, key string) (*SessionInfo, error)

	// UpsertSessionInfo writes the whole session record, inserting it when
	// it does not exist yet. The write is all-or-nothing.
	UpsertSessionInfo(ctx context.Context, info *SessionInfo) error

	// FindStaleSessionInfos returns up to limit sessions whose effective
	// last activity is before the given time, ordered by key and starting
	// after afterKey.
	FindStaleSessionInfos(
		ctx context.Context,
		before gotime.Time,
		afterKey string,
		limit int,
	) ([]*SessionInfo, error)

	// DeleteSessionInfoIfStale deletes the session of the given key if its
	// effective last activity is still before the given time. It reports
	// whether the session was deleted.
	DeleteSessionInfoIfStale(ctx context.Context, key string, before gotime.Time) (bool, error)
}
