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

// Package memory implements the database interface using in-memory database.
package memory

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/yorkie-team/tandem/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// FindSessionInfoByKey returns the session of the given key.
func (d *DB) FindSessionInfoByKey(
	_ context.Context,
	key string,
) (*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSessions, "id", key)
	if err != nil {
		return nil, fmt.Errorf("find session of %s: %w", key, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", key, database.ErrSessionNotFound)
	}

	return raw.(*database.SessionInfo).DeepCopy(), nil
}

// UpsertSessionInfo writes the whole session record.
func (d *DB) UpsertSessionInfo(
	_ context.Context,
	info *database.SessionInfo,
) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblSessions, info.DeepCopy()); err != nil {
		return fmt.Errorf("upsert session of %s: %w", info.Key, err)
	}

	txn.Commit()
	return nil
}

// FindStaleSessionInfos returns sessions inactive since before the given
// time, ordered by key.
func (d *DB) FindStaleSessionInfos(
	_ context.Context,
	before gotime.Time,
	afterKey string,
	limit int,
) ([]*database.SessionInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.LowerBound(tblSessions, "id", afterKey)
	if err != nil {
		return nil, fmt.Errorf("find stale sessions: %w", err)
	}

	var infos []*database.SessionInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		if limit > 0 && len(infos) >= limit {
			break
		}

		info := raw.(*database.SessionInfo)
		if info.Key <= afterKey || !info.IsStale(before) {
			continue
		}
		infos = append(infos, info.DeepCopy())
	}

	return infos, nil
}

// DeleteSessionInfoIfStale deletes the session if it is still stale.
func (d *DB) DeleteSessionInfoIfStale(
	_ context.Context,
	key string,
	before gotime.Time,
) (bool, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSessions, "id", key)
	if err != nil {
		return false, fmt.Errorf("find session of %s: %w", key, err)
	}
	if raw == nil || !raw.(*database.SessionInfo).IsStale(before) {
		return false, nil
	}

	if err := txn.Delete(tblSessions, raw); err != nil {
		return false, fmt.Errorf("delete session of %s: %w", key, err)
	}

	txn.Commit()
	return true, nil
}
