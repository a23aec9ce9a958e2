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

package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/event"
	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/server/logging"
)

// QueryMonitor logs the commands sent to MongoDB and flags slow ones.
type QueryMonitor struct {
	logger    logging.Logger
	threshold time.Duration
}

// NewQueryMonitor creates a new instance of QueryMonitor. Commands slower
// than threshold are logged as warnings; a zero threshold disables that.
func NewQueryMonitor(threshold time.Duration) *QueryMonitor {
	return &QueryMonitor{
		logger:    logging.New("mongo"),
		threshold: threshold,
	}
}

// CommandMonitor returns the event.CommandMonitor to install on the client.
func (m *QueryMonitor) CommandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(_ context.Context, evt *event.CommandStartedEvent) {
			if logging.Enabled(zap.DebugLevel) {
				m.logger.Debugf("STAR: %d(%s): %s", evt.RequestID, evt.CommandName, evt.Command)
			}
		},
		Succeeded: func(_ context.Context, evt *event.CommandSucceededEvent) {
			if m.IsSlow(evt.Duration) {
				m.logger.Warnf("SLOW: %d(%s): %dms", evt.RequestID, evt.CommandName, evt.Duration.Milliseconds())
				return
			}
			m.logger.Debugf("SUCC: %d(%s): %dms", evt.RequestID, evt.CommandName, evt.Duration.Milliseconds())
		},
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			m.logger.Warnf("FAIL: %d(%s), %s: %dms",
				evt.RequestID,
				evt.CommandName,
				evt.Failure,
				evt.Duration.Milliseconds(),
			)
		},
	}
}

// IsSlow reports whether a command of the given duration counts as slow.
func (m *QueryMonitor) IsSlow(d time.Duration) bool {
	return m.threshold > 0 && d > m.threshold
}
