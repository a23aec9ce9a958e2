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

// Package sqlite implements the database interface using an embedded SQLite
// file, for single-node deployments that still need durability.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	gotime "time"

	// register the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/yorkie-team/tandem/server/backend/database"
	"github.com/yorkie-team/tandem/server/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	key              TEXT PRIMARY KEY,
	channels         TEXT NOT NULL DEFAULT '{}',
	last_editor_id   TEXT NOT NULL DEFAULT '',
	last_edited_at   INTEGER NOT NULL,
	last_active_at   INTEGER,
	save_count       INTEGER NOT NULL DEFAULT 0,
	total_size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_active_at
	ON sessions(COALESCE(last_active_at, last_edited_at));
`

// DB is a database backed by a SQLite file.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database file of the given configuration.
func Open(conf *Config) (*DB, error) {
	if dir := filepath.Dir(conf.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", conf.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", conf.ParseBusyTimeout().Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	logging.DefaultLogger().Infof("SQLite opened, path: %s", conf.Path)

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// FindSessionInfoByKey returns the session of the given key.
func (d *DB) FindSessionInfoByKey(
	ctx context.Context,
	key string,
) (*database.SessionInfo, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT key, channels, last_editor_id, last_edited_at, last_active_at,
			save_count, total_size_bytes, created_at
		FROM sessions WHERE key = ?`, key)

	info, err := scanSessionInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, database.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session of %s: %w", key, err)
	}

	return info, nil
}

// UpsertSessionInfo writes the whole session record.
func (d *DB) UpsertSessionInfo(
	ctx context.Context,
	info *database.SessionInfo,
) error {
	channels, err := json.Marshal(info.Channels)
	if err != nil {
		return fmt.Errorf("encode channels of %s: %w", info.Key, err)
	}

	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO sessions (key, channels, last_editor_id, last_edited_at,
			last_active_at, save_count, total_size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			channels = excluded.channels,
			last_editor_id = excluded.last_editor_id,
			last_edited_at = excluded.last_edited_at,
			last_active_at = excluded.last_active_at,
			save_count = excluded.save_count,
			total_size_bytes = excluded.total_size_bytes,
			created_at = excluded.created_at`,
		info.Key,
		string(channels),
		info.LastEditorID,
		info.LastEditedAt.UnixMilli(),
		nullableMillis(info.LastActiveAt),
		info.SaveCount,
		info.TotalSizeBytes,
		info.CreatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert session of %s: %w", info.Key, err)
	}

	return nil
}

// FindStaleSessionInfos returns sessions inactive since before the given
// time, ordered by key.
func (d *DB) FindStaleSessionInfos(
	ctx context.Context,
	before gotime.Time,
	afterKey string,
	limit int,
) ([]*database.SessionInfo, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT key, channels, last_editor_id, last_edited_at, last_active_at,
			save_count, total_size_bytes, created_at
		FROM sessions
		WHERE key > ? AND COALESCE(last_active_at, last_edited_at) < ?
		ORDER BY key
		LIMIT ?`, afterKey, before.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("find stale sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var infos []*database.SessionInfo
	for rows.Next() {
		info, err := scanSessionInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale session: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale sessions: %w", err)
	}

	return infos, nil
}

// DeleteSessionInfoIfStale deletes the session if it is still stale.
func (d *DB) DeleteSessionInfoIfStale(
	ctx context.Context,
	key string,
	before gotime.Time,
) (bool, error) {
	result, err := d.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE key = ? AND COALESCE(last_active_at, last_edited_at) < ?`,
		key, before.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("delete session of %s: %w", key, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session of %s: %w", key, err)
	}

	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSessionInfo(s scanner) (*database.SessionInfo, error) {
	var (
		info         database.SessionInfo
		channels     string
		lastEditedAt int64
		lastActiveAt sql.NullInt64
		createdAt    int64
	)

	if err := s.Scan(
		&info.Key,
		&channels,
		&info.LastEditorID,
		&lastEditedAt,
		&lastActiveAt,
		&info.SaveCount,
		&info.TotalSizeBytes,
		&createdAt,
	); err != nil {
		return nil, err
	}

	info.Channels = make(map[string]string)
	if err := json.Unmarshal([]byte(channels), &info.Channels); err != nil {
		return nil, fmt.Errorf("decode channels of %s: %w", info.Key, err)
	}

	info.LastEditedAt = fromMillis(lastEditedAt)
	if lastActiveAt.Valid {
		info.LastActiveAt = fromMillis(lastActiveAt.Int64)
	}
	info.CreatedAt = fromMillis(createdAt)

	return &info, nil
}

func nullableMillis(t gotime.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) gotime.Time {
	return gotime.UnixMilli(ms).UTC()
}
