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

package types

import (
	"fmt"
)

// SaveErrorKind distinguishes the reasons a batch save can fail.
type SaveErrorKind string

// Below are the kinds of save failures.
const (
	SaveErrRateLimitExceeded  SaveErrorKind = "rate_limit_exceeded"
	SaveErrChannelTooLarge    SaveErrorKind = "channel_too_large"
	SaveErrTotalTooLarge      SaveErrorKind = "total_too_large"
	SaveErrInvalidArgument    SaveErrorKind = "invalid_argument"
	SaveErrPersistenceFailure SaveErrorKind = "persistence_failure"
)

// Retryable reports whether resubmitting the same content later can succeed.
// Size failures only go away when the user shrinks the content.
func (k SaveErrorKind) Retryable() bool {
	return k == SaveErrRateLimitExceeded || k == SaveErrPersistenceFailure
}

// SaveError is the structured failure of a batch save.
type SaveError struct {
	Kind   SaveErrorKind `json:"kind"`
	Detail string        `json:"detail"`

	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	Channel           string `json:"channel,omitempty"`
	Size              int    `json:"size,omitempty"`
	Limit             int    `json:"limit,omitempty"`
}

// Error returns the error message.
func (e *SaveError) Error() string {
	switch e.Kind {
	case SaveErrRateLimitExceeded:
		return fmt.Sprintf("%s: retry after %ds", e.Kind, e.RetryAfterSeconds)
	case SaveErrChannelTooLarge:
		return fmt.Sprintf("%s: %s is %d bytes, limit %d", e.Kind, e.Channel, e.Size, e.Limit)
	case SaveErrTotalTooLarge:
		return fmt.Sprintf("%s: %d bytes, limit %d", e.Kind, e.Size, e.Limit)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

// SaveResult is the outcome of a batch save. Exactly one of Error and Sizes is
// set.
type SaveResult struct {
	Success bool           `json:"success"`
	Error   *SaveError     `json:"error,omitempty"`
	Sizes   *SizeBreakdown `json:"sizes,omitempty"`
}

// NewSaveSuccess returns a successful result carrying the size breakdown.
func NewSaveSuccess(sizes *SizeBreakdown) *SaveResult {
	return &SaveResult{Success: true, Sizes: sizes}
}

// NewSaveFailure returns a failed result.
func NewSaveFailure(err *SaveError) *SaveResult {
	return &SaveResult{Success: false, Error: err}
}

// Err returns the failure as an error, or nil when the save succeeded.
func (r *SaveResult) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return r.Error
}
