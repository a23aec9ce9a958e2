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

// Package errors provides server-side error management with structured status
// codes that map onto HTTP responses.
package errors

import (
	"fmt"
	"net/http"
)

// StatusCode represents the error codes used throughout the server.
type StatusCode int

const (
	// ErrCodeInvalidArgument indicates that the client specified an invalid argument.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound indicates that some requested entity was not found.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeResourceExhausted indicates that a quota or rate limit has been hit.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition indicates that the request cannot be applied
	// in its current shape, for example because a payload is too large.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates that some invariants expected by the
	// underlying system have been broken.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates that a backend is currently unavailable.
	// Clients can back off and retry.
	ErrCodeUnavailable StatusCode = 14
)

// String returns the string representation of the error code.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeFailedPrecondition:
		return "failed_precondition"
	case ErrCodeInternal:
		return "internal"
	case ErrCodeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// HTTPStatus returns the HTTP status used when the code crosses the HTTP API.
func (c StatusCode) HTTPStatus() int {
	switch c {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeResourceExhausted:
		return http.StatusTooManyRequests
	case ErrCodeFailedPrecondition:
		return http.StatusRequestEntityTooLarge
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError returns true if the error code represents a client-side error.
func (c StatusCode) IsClientError() bool {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeNotFound, ErrCodeResourceExhausted,
		ErrCodeFailedPrecondition:
		return true
	default:
		return false
	}
}
