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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yorkie-team/tandem/server"
	"github.com/yorkie-team/tandem/server/backend/database/mongo"
	"github.com/yorkie-team/tandem/server/backend/database/sqlite"
	"github.com/yorkie-team/tandem/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath  string
	flagLogLevel  string
	flagLogFormat string

	pongWait          time.Duration
	broadcastInterval time.Duration

	housekeepingRetention time.Duration
	rateLimitWindow       time.Duration
	sessionCacheTTL       time.Duration

	mongoConnectionURI     string
	mongoConnectionTimeout time.Duration
	mongoDatabase          string
	mongoPingTimeout       time.Duration

	sqlitePath        string
	sqliteBusyTimeout time.Duration

	conf = server.NewConfig()
)

// loadConfig applies the duration and database flags to conf, then replaces
// it with the config file when one is given.
func loadConfig() error {
	conf.RPC.PongWait = pongWait.String()
	conf.RPC.BroadcastInterval = broadcastInterval.String()
	conf.Housekeeping.RetentionPeriod = housekeepingRetention.String()
	conf.Backend.RateLimitWindow = rateLimitWindow.String()
	conf.Backend.SessionCacheTTL = sessionCacheTTL.String()

	if mongoConnectionURI != "" {
		conf.Mongo = &mongo.Config{
			ConnectionURI:     mongoConnectionURI,
			ConnectionTimeout: mongoConnectionTimeout.String(),
			Database:          mongoDatabase,
			PingTimeout:       mongoPingTimeout.String(),
		}
	}

	if sqlitePath != "" {
		conf.SQLite = &sqlite.Config{
			Path:        sqlitePath,
			BusyTimeout: sqliteBusyTimeout.String(),
		}
	}

	// If config file is given, command-line arguments will be overwritten.
	if flagConfPath != "" {
		parsed, err := server.NewConfigFromFile(flagConfPath)
		if err != nil {
			return err
		}
		conf = parsed
	}

	if err := logging.SetLogLevel(flagLogLevel); err != nil {
		return err
	}
	return logging.SetLogFormat(flagLogFormat)
}

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server [options]",
		Short: "Start Tandem server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			t, err := server.New(conf)
			if err != nil {
				return err
			}

			if err := t.Start(); err != nil {
				return err
			}

			if code := handleSignal(t); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().Uint64Var(
		&conf.RPC.MaxRequestBytes,
		"rpc-max-request-bytes",
		server.DefaultRPCMaxRequestBytes,
		"Maximum size of a save request body",
	)
	cmd.Flags().DurationVar(
		&pongWait,
		"rpc-pong-wait",
		server.DefaultRPCPongWait,
		"Time an awareness connection may stay silent before it is dropped",
	)
	cmd.Flags().DurationVar(
		&broadcastInterval,
		"rpc-broadcast-interval",
		server.DefaultRPCBroadcastInterval,
		"Minimum interval between awareness broadcasts of a session",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"enable-pprof",
		server.DefaultProfilingEnablePprof,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().IntVar(
		&conf.Housekeeping.Hour,
		"housekeeping-hour",
		server.DefaultHousekeepingHour,
		"UTC hour of the daily sweep",
	)
	cmd.Flags().IntVar(
		&conf.Housekeeping.CandidatesLimit,
		"housekeeping-candidates-limit",
		server.DefaultHousekeepingLimit,
		"Number of stale sessions fetched per page during a sweep",
	)
	cmd.Flags().BoolVar(
		&conf.Housekeeping.DryRun,
		"housekeeping-dry-run",
		server.DefaultHousekeepingDryRun,
		"Report stale sessions without deleting them",
	)
	cmd.Flags().StringSliceVar(
		&conf.Backend.Channels,
		"backend-channels",
		server.DefaultChannels,
		"Content channels of every session",
	)
	cmd.Flags().IntVar(
		&conf.Backend.MaxChannelBytes,
		"backend-max-channel-bytes",
		server.DefaultMaxChannelBytes,
		"Size limit of one channel's content",
	)
	cmd.Flags().IntVar(
		&conf.Backend.MaxTotalBytes,
		"backend-max-total-bytes",
		server.DefaultMaxTotalBytes,
		"Size limit of all channels submitted in one save",
	)
	cmd.Flags().DurationVar(
		&rateLimitWindow,
		"backend-rate-limit-window",
		server.DefaultRateLimitWindow,
		"Window of the per-session save limit",
	)
	cmd.Flags().IntVar(
		&conf.Backend.MaxSavesPerWindow,
		"backend-max-saves-per-window",
		server.DefaultMaxSavesPerWindow,
		"Number of saves a session accepts per window",
	)
	cmd.Flags().IntVar(
		&conf.Backend.SessionCacheSize,
		"backend-session-cache-size",
		server.DefaultSessionCacheSize,
		"Number of sessions cached for reads",
	)
	cmd.Flags().DurationVar(
		&sessionCacheTTL,
		"backend-session-cache-ttl",
		server.DefaultSessionCacheTTL,
		"TTL of a cached session",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"Server hostname used in logs",
	)
	addCommonFlags(cmd)

	return cmd
}

// addCommonFlags adds the config, logging, retention and database flags
// shared by server and sweep.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().StringVar(
		&flagLogFormat,
		"log-format",
		logging.FormatConsole,
		"Log format: console, json",
	)
	cmd.Flags().StringVar(
		&mongoConnectionURI,
		"mongo-connection-uri",
		"",
		"MongoDB's connection URI",
	)
	cmd.Flags().DurationVar(
		&mongoConnectionTimeout,
		"mongo-connection-timeout",
		server.DefaultMongoConnectionTimeout,
		"Mongo DB's connection timeout",
	)
	cmd.Flags().StringVar(
		&mongoDatabase,
		"mongo-database",
		server.DefaultMongoDatabase,
		"Tandem's database name in MongoDB",
	)
	cmd.Flags().DurationVar(
		&mongoPingTimeout,
		"mongo-ping-timeout",
		server.DefaultMongoPingTimeout,
		"Mongo DB's ping timeout",
	)
	cmd.Flags().StringVar(
		&sqlitePath,
		"sqlite-path",
		"",
		"Path of the SQLite database file",
	)
	cmd.Flags().DurationVar(
		&sqliteBusyTimeout,
		"sqlite-busy-timeout",
		server.DefaultSQLiteBusyTimeout,
		"Time a SQLite writer waits for a lock",
	)
	cmd.Flags().DurationVar(
		&housekeepingRetention,
		"housekeeping-retention",
		server.DefaultHousekeepingRetention,
		"Inactivity after which a session is removed",
	)
}

func handleSignal(t *server.Tandem) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-t.ShutdownCh():
		// tandem is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	logging.DefaultLogger().Infof("caught signal: %s", sig.String())

	gracefulCh := make(chan struct{})
	go func() {
		if err := t.Shutdown(graceful); err != nil {
			logging.DefaultLogger().Error(err)
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}
