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

// Package profiling provides the profiling server, which exposes Prometheus
// metrics and optional pprof endpoints on a separate port.
package profiling

import (
	"errors"
	"fmt"
)

// ErrInvalidProfilingPort occurs when the port in the config is invalid.
var ErrInvalidProfilingPort = errors.New("invalid port number for profiling server")

// Config is the configuration for creating a Server instance.
type Config struct {
	// Port is the port to serve /metrics on.
	Port int `yaml:"Port"`

	// EnablePprof exposes /debug/pprof on the same port.
	EnablePprof bool `yaml:"EnablePprof"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.Port < 1 || 65535 < c.Port {
		return fmt.Errorf(
			`invalid argument "%d" for "--profiling-port" flag: %w`,
			c.Port,
			ErrInvalidProfilingPort,
		)
	}

	return nil
}
