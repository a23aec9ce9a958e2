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

package sqlite

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyPath occurs when the path of the database file is not given.
var ErrEmptyPath = errors.New("sqlite path is empty")

// Config is the configuration for opening a DB instance.
type Config struct {
	// Path is the path of the database file.
	Path string `yaml:"Path"`

	// BusyTimeout is how long a writer waits for a lock held by another
	// connection.
	BusyTimeout string `yaml:"BusyTimeout"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf(`invalid argument for "--sqlite-path" flag: %w`, ErrEmptyPath)
	}

	if c.BusyTimeout != "" {
		if _, err := time.ParseDuration(c.BusyTimeout); err != nil {
			return fmt.Errorf(
				`invalid argument "%s" for "--sqlite-busy-timeout" flag: %w`,
				c.BusyTimeout,
				err,
			)
		}
	}

	return nil
}

// ParseBusyTimeout returns the busy timeout, defaulting to 5 seconds.
func (c *Config) ParseBusyTimeout() time.Duration {
	d, err := time.ParseDuration(c.BusyTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
