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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/backend/database/mongo"
	"github.com/yorkie-team/tandem/server/backend/database/sqlite"
	"github.com/yorkie-team/tandem/server/backend/housekeeping"
	"github.com/yorkie-team/tandem/server/profiling"
	"github.com/yorkie-team/tandem/server/rpc"
)

// Below are the values of the default values of Tandem config.
const (
	DefaultRPCPort               = 8080
	DefaultRPCMaxRequestBytes    = 4 * 1024 * 1024
	DefaultRPCPongWait           = 60 * time.Second
	DefaultRPCBroadcastInterval  = 50 * time.Millisecond
	DefaultProfilingPort         = 8081
	DefaultProfilingEnablePprof  = false
	DefaultHousekeepingHour      = 3
	DefaultHousekeepingRetention = 30 * 24 * time.Hour
	DefaultHousekeepingLimit     = 500
	DefaultHousekeepingDryRun    = false

	DefaultMaxChannelBytes   = 1024 * 1024
	DefaultMaxTotalBytes     = 3 * 1024 * 1024
	DefaultRateLimitWindow   = 60 * time.Second
	DefaultMaxSavesPerWindow = 20
	DefaultSessionCacheSize  = 1000
	DefaultSessionCacheTTL   = 10 * time.Second

	DefaultMongoConnectionURI                = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout            = 5 * time.Second
	DefaultMongoPingTimeout                  = 5 * time.Second
	DefaultMongoDatabase                     = "tandem-meta"
	DefaultMongoMonitoringSlowQueryThreshold = 100 * time.Millisecond

	DefaultSQLiteBusyTimeout = 5 * time.Second

	DefaultHostname = ""
)

// DefaultChannels are the content channels of a session when none are
// configured.
var DefaultChannels = []string{"html", "css", "js"}

// Config is the configuration for creating a Tandem instance.
type Config struct {
	RPC          *rpc.Config          `yaml:"RPC"`
	Profiling    *profiling.Config    `yaml:"Profiling"`
	Housekeeping *housekeeping.Config `yaml:"Housekeeping"`
	Backend      *backend.Config      `yaml:"Backend"`
	Mongo        *mongo.Config        `yaml:"Mongo"`
	SQLite       *sqlite.Config       `yaml:"SQLite"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Housekeeping.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil && c.SQLite != nil {
		return fmt.Errorf("mongo and sqlite cannot be used together")
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	if c.SQLite != nil {
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.RPC == nil {
		c.RPC = &rpc.Config{}
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.MaxRequestBytes == 0 {
		c.RPC.MaxRequestBytes = DefaultRPCMaxRequestBytes
	}
	if c.RPC.PongWait == "" {
		c.RPC.PongWait = DefaultRPCPongWait.String()
	}
	if c.RPC.BroadcastInterval == "" {
		c.RPC.BroadcastInterval = DefaultRPCBroadcastInterval.String()
	}

	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Housekeeping == nil {
		c.Housekeeping = &housekeeping.Config{Hour: DefaultHousekeepingHour}
	}
	if c.Housekeeping.RetentionPeriod == "" {
		c.Housekeeping.RetentionPeriod = DefaultHousekeepingRetention.String()
	}
	if c.Housekeeping.CandidatesLimit == 0 {
		c.Housekeeping.CandidatesLimit = DefaultHousekeepingLimit
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if len(c.Backend.Channels) == 0 {
		c.Backend.Channels = append([]string{}, DefaultChannels...)
	}
	if c.Backend.MaxChannelBytes == 0 {
		c.Backend.MaxChannelBytes = DefaultMaxChannelBytes
	}
	if c.Backend.MaxTotalBytes == 0 {
		c.Backend.MaxTotalBytes = DefaultMaxTotalBytes
	}
	if c.Backend.RateLimitWindow == "" {
		c.Backend.RateLimitWindow = DefaultRateLimitWindow.String()
	}
	if c.Backend.MaxSavesPerWindow == 0 {
		c.Backend.MaxSavesPerWindow = DefaultMaxSavesPerWindow
	}
	if c.Backend.SessionCacheSize == 0 {
		c.Backend.SessionCacheSize = DefaultSessionCacheSize
	}
	if c.Backend.SessionCacheTTL == "" {
		c.Backend.SessionCacheTTL = DefaultSessionCacheTTL.String()
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}

		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}

		if c.Mongo.Database == "" {
			c.Mongo.Database = DefaultMongoDatabase
		}

		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}

		if c.Mongo.MonitoringEnabled {
			if c.Mongo.MonitoringSlowQueryThreshold == "" {
				c.Mongo.MonitoringSlowQueryThreshold = DefaultMongoMonitoringSlowQueryThreshold.String()
			}
		}
	}

	if c.SQLite != nil && c.SQLite.BusyTimeout == "" {
		c.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout.String()
	}
}

func newConfig(port int, profilingPort int) *Config {
	return &Config{
		RPC: &rpc.Config{
			Port:              port,
			MaxRequestBytes:   DefaultRPCMaxRequestBytes,
			PongWait:          DefaultRPCPongWait.String(),
			BroadcastInterval: DefaultRPCBroadcastInterval.String(),
		},
		Profiling: &profiling.Config{
			Port:        profilingPort,
			EnablePprof: DefaultProfilingEnablePprof,
		},
		Housekeeping: &housekeeping.Config{
			Hour:            DefaultHousekeepingHour,
			RetentionPeriod: DefaultHousekeepingRetention.String(),
			CandidatesLimit: DefaultHousekeepingLimit,
			DryRun:          DefaultHousekeepingDryRun,
		},
		Backend: &backend.Config{
			Channels:          append([]string{}, DefaultChannels...),
			MaxChannelBytes:   DefaultMaxChannelBytes,
			MaxTotalBytes:     DefaultMaxTotalBytes,
			RateLimitWindow:   DefaultRateLimitWindow.String(),
			MaxSavesPerWindow: DefaultMaxSavesPerWindow,
			SessionCacheSize:  DefaultSessionCacheSize,
			SessionCacheTTL:   DefaultSessionCacheTTL.String(),
			Hostname:          DefaultHostname,
		},
	}
}
