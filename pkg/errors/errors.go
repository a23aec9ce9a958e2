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

package errors

import (
	"errors"
)

// StatusError represents an error that carries an error status and an
// optional machine readable code such as "ErrRateLimitExceeded".
type StatusError interface {
	error
	Status() StatusCode
	Code() string
	WithCode(code string) StatusError
}

type errorWithStatus struct {
	err    error
	status StatusCode
	code   string
}

// Error returns the error message.
func (e errorWithStatus) Error() string {
	return e.err.Error()
}

// Status returns the error status.
func (e errorWithStatus) Status() StatusCode {
	return e.status
}

// Code returns the string representation of the error code.
func (e errorWithStatus) Code() string {
	return e.code
}

// Unwrap returns the underlying error.
func (e errorWithStatus) Unwrap() error {
	return e.err
}

// Is reports sentinel equality by status and code so that a sentinel still
// matches after it has been wrapped with metadata or fmt.Errorf.
func (e errorWithStatus) Is(target error) bool {
	t, ok := target.(errorWithStatus)
	if !ok {
		return false
	}
	return e.status == t.status && e.code == t.code && e.err.Error() == t.err.Error()
}

// WithCode returns a new StatusError with the specified custom code.
func (e errorWithStatus) WithCode(code string) StatusError {
	return errorWithStatus{
		err:    e.err,
		status: e.status,
		code:   code,
	}
}

func newErrorWithStatus(err error, status StatusCode) StatusError {
	return errorWithStatus{err: err, status: status}
}

// NotFound creates a new "not found" error.
func NotFound(message string) StatusError {
	return newErrorWithStatus(errors.New(message), ErrCodeNotFound)
}

// InvalidArgument creates a new "invalid argument" error.
func InvalidArgument(message string) StatusError {
	return newErrorWithStatus(errors.New(message), ErrCodeInvalidArgument)
}

// ResourceExhausted creates a new "resource exhausted" error.
// Use this when quotas or rate limits are exceeded.
func ResourceExhausted(message string) StatusError {
	return newErrorWithStatus(errors.New(message), ErrCodeResourceExhausted)
}

// FailedPrecond creates a new "failed precondition" error.
func FailedPrecond(message string) StatusError {
	return newErrorWithStatus(errors.New(message), ErrCodeFailedPrecondition)
}

// Internal creates a new "internal" error.
func Internal(message string) StatusError {
	return newErrorWithStatus(errors.New(message), ErrCodeInternal)
}

// Unavailable creates a new "unavailable" error.
func Unavailable(message string) StatusError {
	return newErrorWithStatus(errors.New(message), ErrCodeUnavailable)
}

// StatusOf extracts the error status from an error chain. It returns 0 when
// no StatusError is found.
func StatusOf(err error) StatusCode {
	if err == nil {
		return 0
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status()
	}

	return 0
}

// CodeOf extracts the custom code from an error chain, or "" if there is none.
func CodeOf(err error) string {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code()
	}
	return ""
}

// IsStatus checks if the given error has the specified error status.
func IsStatus(err error, code StatusCode) bool {
	return StatusOf(err) == code
}

// Is is a shortcut of the standard errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a shortcut of the standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
