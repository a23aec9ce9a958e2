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

package housekeeping_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/tandem/server/backend/housekeeping"
)

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := housekeeping.Config{
			Hour:            3,
			RetentionPeriod: "720h",
			CandidatesLimit: 100,
		}
		assert.NoError(t, validConf.Validate())

		retention, err := validConf.ParseRetentionPeriod()
		assert.NoError(t, err)
		assert.Equal(t, 30*24*time.Hour, retention)

		conf1 := validConf
		conf1.Hour = 24
		assert.Error(t, conf1.Validate())

		conf2 := validConf
		conf2.RetentionPeriod = "month"
		assert.Error(t, conf2.Validate())

		conf3 := validConf
		conf3.RetentionPeriod = "-1h"
		assert.Error(t, conf3.Validate())

		conf4 := validConf
		conf4.CandidatesLimit = 0
		assert.Error(t, conf4.Validate())
	})
}
