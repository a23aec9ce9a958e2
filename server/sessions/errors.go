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

package sessions

import (
	"errors"
	"strconv"

	"github.com/yorkie-team/tandem/api/types"
	pkgerrors "github.com/yorkie-team/tandem/pkg/errors"
)

var (
	// ErrRateLimitExceeded is returned when a session already accepted the
	// maximum number of saves in the current window.
	ErrRateLimitExceeded = pkgerrors.ResourceExhausted("save rate limit exceeded").WithCode("ErrRateLimitExceeded")

	// ErrChannelTooLarge is returned when one channel exceeds the size limit.
	ErrChannelTooLarge = pkgerrors.FailedPrecond("channel too large").WithCode("ErrChannelTooLarge")

	// ErrTotalTooLarge is returned when the submitted channels together
	// exceed the size limit.
	ErrTotalTooLarge = pkgerrors.FailedPrecond("channels too large").WithCode("ErrTotalTooLarge")

	// ErrInvalidSaveRequest is returned when the key, the editor or the
	// channels of a save are malformed.
	ErrInvalidSaveRequest = pkgerrors.InvalidArgument("invalid save request").WithCode("ErrInvalidSaveRequest")

	// ErrInvalidSessionKey is returned when a session key is malformed.
	ErrInvalidSessionKey = pkgerrors.InvalidArgument("invalid session key").WithCode("ErrInvalidSessionKey")

	// ErrPersistenceFailure is returned when the storage could not be read or
	// written.
	ErrPersistenceFailure = pkgerrors.Unavailable("session storage unavailable").WithCode("ErrPersistenceFailure")
)

const (
	metaRetryAfter = "retry_after_seconds"
	metaChannel    = "channel"
	metaSize       = "size"
	metaLimit      = "limit"
)

func rateLimitError(retryAfterSeconds int) error {
	return pkgerrors.WithMetadata(ErrRateLimitExceeded, map[string]string{
		metaRetryAfter: strconv.Itoa(retryAfterSeconds),
	})
}

func channelTooLargeError(name string, size, limit int) error {
	return pkgerrors.WithMetadata(ErrChannelTooLarge, map[string]string{
		metaChannel: name,
		metaSize:    strconv.Itoa(size),
		metaLimit:   strconv.Itoa(limit),
	})
}

func totalTooLargeError(size, limit int) error {
	return pkgerrors.WithMetadata(ErrTotalTooLarge, map[string]string{
		metaSize:  strconv.Itoa(size),
		metaLimit: strconv.Itoa(limit),
	})
}

// ToSaveError converts an error of BatchSave into the structured failure
// returned to clients. Errors that are not recognized are reported as
// persistence failures.
func ToSaveError(err error) *types.SaveError {
	if err == nil {
		return nil
	}

	saveErr := &types.SaveError{Detail: err.Error()}
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		saveErr.Kind = types.SaveErrRateLimitExceeded
		saveErr.RetryAfterSeconds = pkgerrors.MetadataInt(err, metaRetryAfter)
	case errors.Is(err, ErrChannelTooLarge):
		saveErr.Kind = types.SaveErrChannelTooLarge
		saveErr.Channel = pkgerrors.Metadata(err)[metaChannel]
		saveErr.Size = pkgerrors.MetadataInt(err, metaSize)
		saveErr.Limit = pkgerrors.MetadataInt(err, metaLimit)
	case errors.Is(err, ErrTotalTooLarge):
		saveErr.Kind = types.SaveErrTotalTooLarge
		saveErr.Size = pkgerrors.MetadataInt(err, metaSize)
		saveErr.Limit = pkgerrors.MetadataInt(err, metaLimit)
	case pkgerrors.IsStatus(err, pkgerrors.ErrCodeInvalidArgument):
		saveErr.Kind = types.SaveErrInvalidArgument
	default:
		saveErr.Kind = types.SaveErrPersistenceFailure
	}

	return saveErr
}
