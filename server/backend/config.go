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

package backend

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidChannels is returned when the channel list is empty or has
// duplicates.
var ErrInvalidChannels = errors.New("channels must be non-empty and unique")

// Config is the configuration for creating a Backend instance.
type Config struct {
	// Channels are the content channels of every session, e.g. html, css, js.
	Channels []string `yaml:"Channels"`

	// MaxChannelBytes is the size limit of one channel's content.
	MaxChannelBytes int `yaml:"MaxChannelBytes"`

	// MaxTotalBytes is the size limit of all channels stored in a session.
	MaxTotalBytes int `yaml:"MaxTotalBytes"`

	// RateLimitWindow is the window the save counter is kept for, measured
	// from the last successful save.
	RateLimitWindow string `yaml:"RateLimitWindow"`

	// MaxSavesPerWindow is how many saves a session accepts per window.
	MaxSavesPerWindow int `yaml:"MaxSavesPerWindow"`

	// SessionCacheSize is the number of sessions cached for reads.
	SessionCacheSize int `yaml:"SessionCacheSize"`

	// SessionCacheTTL is how long a cached session is served.
	SessionCacheTTL string `yaml:"SessionCacheTTL"`

	// Hostname is the server hostname used in logs.
	Hostname string `yaml:"Hostname"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Channels))
	for _, name := range c.Channels {
		if name == "" || seen[name] {
			return fmt.Errorf(`invalid argument "%v" for "--channels" flag: %w`, c.Channels, ErrInvalidChannels)
		}
		seen[name] = true
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf(`invalid argument for "--channels" flag: %w`, ErrInvalidChannels)
	}

	if c.MaxChannelBytes <= 0 {
		return fmt.Errorf(`invalid argument %d for "--max-channel-bytes" flag`, c.MaxChannelBytes)
	}
	if c.MaxTotalBytes < c.MaxChannelBytes {
		return fmt.Errorf(
			`invalid argument %d for "--max-total-bytes" flag: must be at least %d`,
			c.MaxTotalBytes,
			c.MaxChannelBytes,
		)
	}

	if window, err := time.ParseDuration(c.RateLimitWindow); err != nil || window <= 0 {
		return fmt.Errorf(
			`invalid argument "%s" for "--rate-limit-window" flag: must be a positive duration`,
			c.RateLimitWindow,
		)
	}
	if c.MaxSavesPerWindow <= 0 {
		return fmt.Errorf(`invalid argument %d for "--max-saves-per-window" flag`, c.MaxSavesPerWindow)
	}

	if c.SessionCacheSize <= 0 {
		return fmt.Errorf(`invalid argument %d for "--session-cache-size" flag`, c.SessionCacheSize)
	}
	if _, err := time.ParseDuration(c.SessionCacheTTL); err != nil {
		return fmt.Errorf(
			`invalid argument "%s" for "--session-cache-ttl" flag: %w`,
			c.SessionCacheTTL,
			err,
		)
	}

	return nil
}

// ParseRateLimitWindow returns the rate limit window. Call Validate first.
func (c *Config) ParseRateLimitWindow() time.Duration {
	window, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil {
		return 0
	}
	return window
}

// ParseSessionCacheTTL returns the TTL of cached sessions. Call Validate first.
func (c *Config) ParseSessionCacheTTL() time.Duration {
	ttl, err := time.ParseDuration(c.SessionCacheTTL)
	if err != nil {
		return 0
	}
	return ttl
}
