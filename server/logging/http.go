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
	"time"

	pkgerrors "github.com/yorkie-team/tandem/pkg/errors"
)

// RequestLogLevel represents the severity a finished request is logged with.
type RequestLogLevel int

// RequestLogLevel values, from least to most severe.
const (
	RequestLogDebug RequestLogLevel = iota
	RequestLogInfo
	RequestLogWarn
	RequestLogError
)

// String returns the string representation of RequestLogLevel.
func (l RequestLogLevel) String() string {
	switch l {
	case RequestLogDebug:
		return "debug"
	case RequestLogInfo:
		return "info"
	case RequestLogError:
		return "error"
	}
	return "warn"
}

// ToRequestLogLevel classifies a request error by its status.
func ToRequestLogLevel(err error) RequestLogLevel {
	if err == nil || errors.Is(err, context.Canceled) {
		return RequestLogDebug
	}

	switch pkgerrors.StatusOf(err) {
	case pkgerrors.ErrCodeInvalidArgument, pkgerrors.ErrCodeNotFound:
		return RequestLogInfo
	case pkgerrors.ErrCodeResourceExhausted, pkgerrors.ErrCodeFailedPrecondition:
		return RequestLogWarn
	case pkgerrors.ErrCodeInternal, pkgerrors.ErrCodeUnavailable:
		return RequestLogError
	}

	return RequestLogWarn
}

// LogRequest logs a finished HTTP request. Successful requests are logged at
// debug level; failed ones at the level their status calls for.
func LogRequest(
	logger Logger,
	method, path string,
	status int,
	duration time.Duration,
	err error,
) {
	if err == nil {
		logger.Debugf("HTTP: %s %s %d %s", method, path, status, duration)
		return
	}

	const template = "HTTP: %s %s %d %s => %q"
	switch ToRequestLogLevel(err) {
	case RequestLogDebug:
		logger.Debugf(template, method, path, status, duration, err)
	case RequestLogInfo:
		logger.Infof(template, method, path, status, duration, err)
	case RequestLogError:
		logger.Errorf(template, method, path, status, duration, err)
	default:
		logger.Warnf(template, method, path, status, duration, err)
	}
}
