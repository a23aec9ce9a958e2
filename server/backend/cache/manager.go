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

// Package cache holds the caches of the backend.
package cache

import (
	"context"
	"time"

	"github.com/yorkie-team/tandem/pkg/cache"
	"github.com/yorkie-team/tandem/server/backend/database"
	"github.com/yorkie-team/tandem/server/logging"
)

// Options contains configuration for the cache manager.
type Options struct {
	// SessionCacheSize is the number of sessions kept for reads.
	SessionCacheSize int

	// SessionCacheTTL is how long a cached session is served.
	SessionCacheTTL time.Duration
}

// Manager manages the caches used in the backend.
type Manager struct {
	// Session caches session records for reads. Writers in this process
	// replace or remove entries after a successful write.
	Session *cache.ExpirableLRU[string, *database.SessionInfo]
}

// New creates a new cache manager.
func New(opts Options) (*Manager, error) {
	sessionCache, err := cache.NewExpirableLRU[string, *database.SessionInfo](
		opts.SessionCacheSize,
		opts.SessionCacheTTL,
		"sessions",
	)
	if err != nil {
		return nil, err
	}

	return &Manager{Session: sessionCache}, nil
}

// LogStats logs the statistics of every cache.
func (m *Manager) LogStats(ctx context.Context) {
	stats := m.Session.Stats()
	logging.From(ctx).Infof(
		"CACHE: %s len=%d hits=%d misses=%d evictions=%d hitRate=%.2f%%",
		m.Session.Name(),
		m.Session.Len(),
		stats.Hits(),
		stats.Misses(),
		stats.Evictions(),
		stats.HitRate(),
	)
}
