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

// Package server provides the Tandem server which is the main entry point of
// the Tandem system. The server is responsible for starting the RPC server,
// the profiling server and the daily housekeeping.
package server

import (
	"context"
	gosync "sync"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/profiling"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
	"github.com/yorkie-team/tandem/server/rpc"
	"github.com/yorkie-team/tandem/server/sessions"
)

// Tandem is a server of Tandem.
// The server stores the sessions participants save, relays their awareness
// states and sweeps the sessions nobody uses anymore.
type Tandem struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	rpcServer       *rpc.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Tandem.
func New(conf *Config, opts ...backend.Option) (*Tandem, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := newBackend(conf, metrics, opts...)
	if err != nil {
		return nil, err
	}

	rpcServer, err := rpc.NewServer(conf.RPC, be)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Tandem{
		conf:            conf,
		backend:         be,
		rpcServer:       rpcServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

func newBackend(conf *Config, metrics *prometheus.Metrics, opts ...backend.Option) (*backend.Backend, error) {
	return backend.New(
		conf.Backend,
		conf.Mongo,
		conf.SQLite,
		conf.Housekeeping,
		metrics,
		opts...,
	)
}

// Start starts the server by opening the rpc port.
func (r *Tandem) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.RegisterHousekeepingTasks(r.backend); err != nil {
		return err
	}

	if err := r.backend.Start(); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.rpcServer.Start()
}

// Shutdown shuts down this Tandem server.
func (r *Tandem) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.rpcServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Tandem) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (r *Tandem) RPCAddr() string {
	return r.conf.RPCAddr()
}

// Sweep runs one sweep with the configured retention period. It is used by
// the sweep command and by tests.
func (r *Tandem) Sweep(ctx context.Context, dryRun bool) (*types.SweepResult, error) {
	retention, err := r.conf.Housekeeping.ParseRetentionPeriod()
	if err != nil {
		return nil, err
	}

	return sessions.Sweep(
		ctx,
		r.backend,
		retention,
		dryRun,
		sessions.WithPageSize(r.conf.Housekeeping.CandidatesLimit),
	)
}

// RegisterHousekeepingTasks registers housekeeping tasks.
func (r *Tandem) RegisterHousekeepingTasks(be *backend.Backend) error {
	if _, err := r.conf.Housekeeping.ParseRetentionPeriod(); err != nil {
		return err
	}

	be.Housekeeping.RegisterTask("sweep", func(ctx context.Context) error {
		_, err := r.Sweep(ctx, r.conf.Housekeeping.DryRun)
		return err
	})

	return nil
}
