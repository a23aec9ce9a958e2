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

package prometheus_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/tandem/server/profiling/prometheus"
)

func TestMetrics(t *testing.T) {
	t.Run("gather test", func(t *testing.T) {
		metrics, err := prometheus.NewMetrics()
		require.NoError(t, err)

		metrics.AddSave("success")
		metrics.AddSave("rate_limit_exceeded")
		metrics.AddSavedBytes(42)
		metrics.AddSweep(false, 2, 100, 1)
		metrics.AddSweep(true, 5, 500, 0)
		metrics.AddAwarenessConnections()
		metrics.AddServerHandledCounter("POST", "/sessions/{key}/save", 200)

		count, err := testutil.GatherAndCount(
			metrics.Registry(),
			"tandem_autosave_saves_total",
			"tandem_sweeper_runs_total",
			"tandem_sweeper_deleted_sessions_total",
		)
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})
}
