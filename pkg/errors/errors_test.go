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

package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/tandem/pkg/errors"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		code errors.StatusCode
		want string
		http int
	}{
		{"InvalidArgument", errors.ErrCodeInvalidArgument, "invalid_argument", http.StatusBadRequest},
		{"NotFound", errors.ErrCodeNotFound, "not_found", http.StatusNotFound},
		{"ResourceExhausted", errors.ErrCodeResourceExhausted, "resource_exhausted", http.StatusTooManyRequests},
		{"FailedPrecondition", errors.ErrCodeFailedPrecondition, "failed_precondition", http.StatusRequestEntityTooLarge},
		{"Internal", errors.ErrCodeInternal, "internal", http.StatusInternalServerError},
		{"Unavailable", errors.ErrCodeUnavailable, "unavailable", http.StatusServiceUnavailable},
		{"Unknown", errors.StatusCode(999), "code_999", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
			assert.Equal(t, tt.http, tt.code.HTTPStatus())
		})
	}
}

func TestStatusError(t *testing.T) {
	errRateLimited := errors.ResourceExhausted("rate limited").WithCode("ErrRateLimited")

	t.Run("status survives wrapping test", func(t *testing.T) {
		wrapped := fmt.Errorf("batch save: %w", errRateLimited)
		assert.Equal(t, errors.ErrCodeResourceExhausted, errors.StatusOf(wrapped))
		assert.Equal(t, "ErrRateLimited", errors.CodeOf(wrapped))
		assert.True(t, errors.Is(wrapped, errRateLimited))
		assert.True(t, errors.IsStatus(wrapped, errors.ErrCodeResourceExhausted))
	})

	t.Run("plain errors have no status test", func(t *testing.T) {
		err := fmt.Errorf("boom")
		assert.Equal(t, errors.StatusCode(0), errors.StatusOf(err))
		assert.Equal(t, "", errors.CodeOf(err))
		assert.Equal(t, errors.StatusCode(0), errors.StatusOf(nil))
	})

	t.Run("client errors test", func(t *testing.T) {
		assert.True(t, errors.ErrCodeResourceExhausted.IsClientError())
		assert.False(t, errors.ErrCodeUnavailable.IsClientError())
	})
}

func TestMetadata(t *testing.T) {
	errTooLarge := errors.FailedPrecond("too large").WithCode("ErrTooLarge")

	t.Run("metadata is merged test", func(t *testing.T) {
		err := errors.WithMetadata(errTooLarge, map[string]string{"channel": "css", "size": "11"})
		err = errors.WithMetadata(err, map[string]string{"limit": "10"})

		assert.Equal(t, map[string]string{"channel": "css", "size": "11", "limit": "10"}, errors.Metadata(err))
		assert.Equal(t, 11, errors.MetadataInt(err, "size"))
		assert.Equal(t, 0, errors.MetadataInt(err, "channel"))
		assert.Equal(t, 0, errors.MetadataInt(err, "missing"))
		assert.True(t, errors.Is(err, errTooLarge))
		assert.Equal(t, "ErrTooLarge", errors.CodeOf(err))
	})

	t.Run("empty metadata returns original test", func(t *testing.T) {
		assert.Equal(t, errTooLarge, errors.WithMetadata(errTooLarge, nil))
		assert.Nil(t, errors.WithMetadata(nil, map[string]string{"a": "b"}))
		assert.Nil(t, errors.Metadata(errTooLarge))
	})
}
