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

// Package housekeeping runs the daily maintenance of the server. It removes
// sessions that have been inactive for longer than the retention period.
package housekeeping

import (
	"fmt"
	"time"
)

// Config is the configuration for the housekeeping service.
type Config struct {
	// Hour is the UTC hour of the day (0-23) the daily run starts at.
	Hour int `yaml:"Hour"`

	// RetentionPeriod is how long a session may stay inactive before it is
	// removed.
	RetentionPeriod string `yaml:"RetentionPeriod"`

	// CandidatesLimit is the page size used when fetching stale sessions.
	CandidatesLimit int `yaml:"CandidatesLimit"`

	// DryRun only reports what would be removed.
	DryRun bool `yaml:"DryRun"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf(
			`invalid argument %d for "--housekeeping-hour" flag: must be between 0 and 23`,
			c.Hour,
		)
	}

	retention, err := time.ParseDuration(c.RetentionPeriod)
	if err != nil {
		return fmt.Errorf(
			`invalid argument %s for "--housekeeping-retention-period" flag: %w`,
			c.RetentionPeriod,
			err,
		)
	}
	if retention <= 0 {
		return fmt.Errorf(
			`invalid argument %s for "--housekeeping-retention-period" flag: must be positive`,
			c.RetentionPeriod,
		)
	}

	if c.CandidatesLimit <= 0 {
		return fmt.Errorf(
			`invalid argument %d for "--housekeeping-candidates-limit" flag`,
			c.CandidatesLimit,
		)
	}

	return nil
}

// ParseRetentionPeriod parses the retention period.
func (c *Config) ParseRetentionPeriod() (time.Duration, error) {
	retention, err := time.ParseDuration(c.RetentionPeriod)
	if err != nil {
		return 0, fmt.Errorf("parse retention period %s: %w", c.RetentionPeriod, err)
	}

	return retention, nil
}
