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

package profiling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yorkie-team/tandem/server/logging"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
)

const (
	httpPrefixMetrics = "/metrics"
	httpPrefixPProf   = "/debug/pprof"
)

// Server serves metrics and, when enabled, pprof endpoints.
type Server struct {
	conf       *Config
	serveMux   *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates an instance of Server.
func NewServer(conf *Config, metrics *prometheus.Metrics) *Server {
	serveMux := http.NewServeMux()
	if conf.EnablePprof {
		serveMux.HandleFunc(httpPrefixPProf+"/", pprof.Index)
		serveMux.HandleFunc(httpPrefixPProf+"/cmdline", pprof.Cmdline)
		serveMux.HandleFunc(httpPrefixPProf+"/profile", pprof.Profile)
		serveMux.HandleFunc(httpPrefixPProf+"/symbol", pprof.Symbol)
		serveMux.HandleFunc(httpPrefixPProf+"/trace", pprof.Trace)
	}

	if metrics != nil {
		serveMux.Handle(httpPrefixMetrics, promhttp.HandlerFor(
			metrics.Registry(),
			promhttp.HandlerOpts{EnableOpenMetrics: true},
		))
	}

	return &Server{
		conf:       conf,
		serveMux:   serveMux,
		httpServer: &http.Server{Handler: serveMux},
	}
}

// Handler returns the handler of the server, for tests.
func (s *Server) Handler() http.Handler {
	return s.serveMux
}

// Start binds the port and serves in the background. Binding errors are
// returned to the caller.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.Port))
	if err != nil {
		return fmt.Errorf("listen profiling port %d: %w", s.conf.Port, err)
	}
	s.listener = lis

	go func() {
		logging.DefaultLogger().Infof("serving profiling on %d", s.conf.Port)
		if err := s.httpServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			logging.DefaultLogger().Errorf("profiling server serve: %v", err)
		}
	}()
	return nil
}

// Shutdown shuts down the server.
func (s *Server) Shutdown(graceful bool) {
	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			logging.DefaultLogger().Errorf("profiling server shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		logging.DefaultLogger().Errorf("profiling server close: %v", err)
	}
}
