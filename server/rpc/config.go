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

package rpc

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRPCPort occurs when the port in the config is invalid.
	ErrInvalidRPCPort = errors.New("invalid port number for RPC server")
	// ErrInvalidMaxRequestBytes occurs when the request size limit is zero.
	ErrInvalidMaxRequestBytes = errors.New("invalid max request bytes for RPC server")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the port number for the RPC server.
	Port int `yaml:"Port"`

	// MaxRequestBytes is the maximum client request size in bytes the server will accept.
	MaxRequestBytes uint64 `yaml:"MaxRequestBytes"`

	// PongWait is how long an awareness connection may stay silent before
	// it is dropped. Pings are sent at nine tenths of it.
	PongWait string `yaml:"PongWait"`

	// BroadcastInterval is the minimum interval between two state
	// broadcasts of one session. Changes inside it are coalesced.
	BroadcastInterval string `yaml:"BroadcastInterval"`
}

// Validate validates the port number and the durations.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidRPCPort)
	}

	if c.MaxRequestBytes == 0 {
		return fmt.Errorf(`invalid argument for "--max-request-bytes" flag: %w`, ErrInvalidMaxRequestBytes)
	}

	if d, err := time.ParseDuration(c.PongWait); err != nil || d <= 0 {
		return fmt.Errorf(
			`invalid argument "%s" for "--pong-wait" flag: must be a positive duration`,
			c.PongWait,
		)
	}

	if _, err := time.ParseDuration(c.BroadcastInterval); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--broadcast-interval" flag: %w`,
			c.BroadcastInterval,
			err,
		)
	}

	return nil
}

// ParsePongWait returns the pong wait. Call Validate first.
func (c *Config) ParsePongWait() time.Duration {
	d, err := time.ParseDuration(c.PongWait)
	if err != nil {
		return 0
	}
	return d
}

// ParseBroadcastInterval returns the broadcast interval. Call Validate first.
func (c *Config) ParseBroadcastInterval() time.Duration {
	d, err := time.ParseDuration(c.BroadcastInterval)
	if err != nil {
		return 0
	}
	return d
}
