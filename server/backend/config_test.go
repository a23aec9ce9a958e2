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

package backend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/tandem/server/backend"
)

func newValidBackendConf() backend.Config {
	return backend.Config{
		Channels:          []string{"html", "css", "js"},
		MaxChannelBytes:   1 << 20,
		MaxTotalBytes:     3 << 20,
		RateLimitWindow:   "60s",
		MaxSavesPerWindow: 20,
		SessionCacheSize:  1000,
		SessionCacheTTL:   "10s",
	}
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := newValidBackendConf()
		assert.NoError(t, validConf.Validate())

		conf1 := newValidBackendConf()
		conf1.Channels = []string{"html", "html"}
		assert.ErrorIs(t, conf1.Validate(), backend.ErrInvalidChannels)

		conf2 := newValidBackendConf()
		conf2.Channels = nil
		assert.ErrorIs(t, conf2.Validate(), backend.ErrInvalidChannels)

		conf3 := newValidBackendConf()
		conf3.MaxTotalBytes = conf3.MaxChannelBytes - 1
		assert.Error(t, conf3.Validate())

		conf4 := newValidBackendConf()
		conf4.RateLimitWindow = "0s"
		assert.Error(t, conf4.Validate())

		conf5 := newValidBackendConf()
		conf5.SessionCacheTTL = "ten"
		assert.Error(t, conf5.Validate())
	})

	t.Run("parse test", func(t *testing.T) {
		conf := newValidBackendConf()
		assert.Equal(t, time.Minute, conf.ParseRateLimitWindow())
		assert.Equal(t, 10*time.Second, conf.ParseSessionCacheTTL())
	})
}
