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

// Package backend provides the backend of the Tandem server. It owns the
// database and the in-process resources sessions are served with: caches,
// locks, color bookkeeping, background routines and housekeeping.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"

	"github.com/yorkie-team/tandem/pkg/palette"
	"github.com/yorkie-team/tandem/server/backend/background"
	"github.com/yorkie-team/tandem/server/backend/cache"
	"github.com/yorkie-team/tandem/server/backend/colors"
	"github.com/yorkie-team/tandem/server/backend/database"
	memdb "github.com/yorkie-team/tandem/server/backend/database/memory"
	"github.com/yorkie-team/tandem/server/backend/database/mongo"
	"github.com/yorkie-team/tandem/server/backend/database/sqlite"
	"github.com/yorkie-team/tandem/server/backend/housekeeping"
	"github.com/yorkie-team/tandem/server/backend/sync"
	"github.com/yorkie-team/tandem/server/logging"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
)

// Backend manages Tandem's backend such as Database and Lockers.
type Backend struct {
	Config *Config

	// Clock is the time source of saves, sweeps and housekeeping.
	Clock clock.Clock

	// Cache is the central cache manager for all caches.
	Cache *cache.Manager
	// Lockers serializes writes of one session.
	Lockers *sync.LockerManager
	// Colors assigns participant colors per session.
	Colors *colors.Manager

	// Background is used to manage background tasks.
	Background *background.Background
	// Housekeeping runs the daily maintenance.
	Housekeeping *housekeeping.Housekeeping

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the database instance.
	DB database.Database
}

// Option configures optional parts of the backend.
type Option func(*options)

type options struct {
	clock   clock.Clock
	palette palette.Palette
	db      database.Database
}

// WithClock replaces the wall clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithPalette replaces the default color palette.
func WithPalette(p palette.Palette) Option {
	return func(o *options) { o.palette = p }
}

// WithDatabase uses the given database instead of opening one.
func WithDatabase(db database.Database) Option {
	return func(o *options) { o.db = db }
}

// New creates a new instance of Backend. The database is MongoDB when
// mongoConf is given, SQLite when sqliteConf is given, and memory otherwise.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	sqliteConf *sqlite.Config,
	housekeepingConf *housekeeping.Config,
	metrics *prometheus.Metrics,
	opts ...Option,
) (*Backend, error) {
	o := &options{clock: clock.New(), palette: palette.Default}
	for _, opt := range opts {
		opt(o)
	}

	// 01. Fill in the hostname of the current machine if not given.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Create the cache manager, lockers and the color manager.
	cacheManager, err := cache.New(cache.Options{
		SessionCacheSize: conf.SessionCacheSize,
		SessionCacheTTL:  conf.ParseSessionCacheTTL(),
	})
	if err != nil {
		return nil, err
	}
	lockers := sync.New()
	colorManager := colors.NewManager(o.palette)
	bg := background.New(metrics)

	// 03. Create the database instance.
	db, dbInfo, err := openDatabase(o.db, mongoConf, sqliteConf)
	if err != nil {
		return nil, err
	}

	// 04. Create the housekeeping instance. Tasks that need the session
	// logic are registered by the server.
	housekeeper, err := housekeeping.New(housekeepingConf, o.clock, lockers)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	housekeeper.RegisterTask("cache-stats", func(ctx context.Context) error {
		cacheManager.LogStats(ctx)
		return nil
	})

	logging.DefaultLogger().Infof("backend created: db: %s, host: %s", dbInfo, conf.Hostname)

	return &Backend{
		Config: conf,
		Clock:  o.clock,

		Cache:   cacheManager,
		Lockers: lockers,
		Colors:  colorManager,

		Background:   bg,
		Housekeeping: housekeeper,

		Metrics: metrics,
		DB:      db,
	}, nil
}

func openDatabase(
	given database.Database,
	mongoConf *mongo.Config,
	sqliteConf *sqlite.Config,
) (database.Database, string, error) {
	switch {
	case given != nil:
		return given, "custom", nil
	case mongoConf != nil:
		db, err := mongo.Dial(mongoConf)
		if err != nil {
			return nil, "", err
		}
		return db, mongoConf.ConnectionURI, nil
	case sqliteConf != nil:
		db, err := sqlite.Open(sqliteConf)
		if err != nil {
			return nil, "", err
		}
		return db, "sqlite:" + sqliteConf.Path, nil
	default:
		db, err := memdb.New()
		if err != nil {
			return nil, "", err
		}
		return db, "memory", nil
	}
}

// Start starts the background services of the backend.
func (b *Backend) Start() error {
	if err := b.Housekeeping.Start(b.Background); err != nil {
		return err
	}

	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown stops the background services and closes the database.
func (b *Backend) Shutdown() error {
	var errs []error

	if err := b.Housekeeping.Stop(); err != nil {
		errs = append(errs, err)
	}

	b.Background.Close()

	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
