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

package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/yorkie-team/tandem/pkg/errors"
)

func TestToRequestLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected RequestLogLevel
	}{
		{name: "nil error", err: nil, expected: RequestLogDebug},
		{name: "context canceled", err: context.Canceled, expected: RequestLogDebug},
		{
			name:     "wrapped invalid argument",
			err:      fmt.Errorf("save: %w", pkgerrors.InvalidArgument("bad key")),
			expected: RequestLogInfo,
		},
		{name: "not found", err: pkgerrors.NotFound("no session"), expected: RequestLogInfo},
		{name: "rate limited", err: pkgerrors.ResourceExhausted("slow down"), expected: RequestLogWarn},
		{name: "too large", err: pkgerrors.FailedPrecond("too large"), expected: RequestLogWarn},
		{name: "internal", err: pkgerrors.Internal("broken"), expected: RequestLogError},
		{name: "unavailable", err: pkgerrors.Unavailable("db down"), expected: RequestLogError},
		{name: "plain error", err: errors.New("unknown"), expected: RequestLogWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToRequestLogLevel(tt.err))
		})
	}
}

func TestLogFormat(t *testing.T) {
	assert.NoError(t, SetLogFormat("json"))
	assert.NoError(t, SetLogFormat("console"))
	assert.Error(t, SetLogFormat("xml"))
	assert.Error(t, SetLogLevel("verbose"))
	assert.NoError(t, SetLogLevel("info"))
	assert.Equal(t, "warn", RequestLogWarn.String())
}
