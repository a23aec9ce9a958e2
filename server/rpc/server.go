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

// Package rpc provides the HTTP API of Tandem: session reads and batch
// saves as JSON, and the awareness relay over websockets.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/logging"
)

const shutdownTimeout = 10 * time.Second

// Server is a normal server that processes the logic requested by the client.
type Server struct {
	conf       *Config
	httpServer *http.Server
	relay      *relay
	handler    http.Handler
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) (*Server, error) {
	rl := newRelay(conf, be)
	sessionServer := &sessionServer{conf: conf, be: be}

	r := mux.NewRouter()
	r.Use(newLoggingMiddleware(be.Metrics))

	r.Methods(http.MethodGet, http.MethodHead).Path("/healthz").HandlerFunc(sessionServer.healthz)
	r.Methods(http.MethodGet).Path("/sessions/{key}").HandlerFunc(sessionServer.getSession)
	r.Methods(http.MethodPost).Path("/sessions/{key}/save").HandlerFunc(sessionServer.saveSession)
	r.Methods(http.MethodGet).Path("/sessions/{key}/awareness").HandlerFunc(rl.serve)

	return &Server{
		conf:    conf,
		relay:   rl,
		handler: r,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", conf.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the HTTP handler of this server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		logging.DefaultLogger().Error(err)
		return fmt.Errorf("listen on %d: %w", s.conf.Port, err)
	}

	go func() {
		logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)

		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.DefaultLogger().Error(err)
		}
	}()

	return nil
}

// Shutdown shuts down this server. Awareness connections are hijacked from
// the HTTP server, so they are closed here in both modes.
func (s *Server) Shutdown(graceful bool) {
	rooms, conns := s.relay.stats()
	logging.DefaultLogger().Infof("closing %d awareness connections in %d sessions", conns, rooms)
	s.relay.close()

	if !graceful {
		_ = s.httpServer.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.DefaultLogger().Errorf("HTTP server Shutdown: %v", err)
	}
}
