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

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/yorkie-team/tandem/api/types"
	pkgerrors "github.com/yorkie-team/tandem/pkg/errors"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/logging"
	"github.com/yorkie-team/tandem/server/sessions"
)

// errorResponse is the body of failed requests other than saves.
type errorResponse struct {
	Error *types.SaveError `json:"error"`
}

// healthResponse is the body of the health check.
type healthResponse struct {
	Status string `json:"status"`
}

type sessionServer struct {
	conf *Config
	be   *backend.Backend
}

func (s *sessionServer) getSession(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	view, err := sessions.Get(r.Context(), s.be, key)
	if err != nil {
		setRequestError(r, err)
		writeJSON(r, w, pkgerrors.StatusOf(err).HTTPStatus(), errorResponse{Error: sessions.ToSaveError(err)})
		return
	}

	writeJSON(r, w, http.StatusOK, view)
}

func (s *sessionServer) saveSession(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	req, err := s.decodeSaveRequest(w, r)
	if err != nil {
		result := types.NewSaveFailure(err)
		s.writeSaveResult(w, r, result)
		return
	}

	result := sessions.BatchSave(r.Context(), s.be, key, req.Channels, req.EditorID)
	s.writeSaveResult(w, r, result)
}

func (s *sessionServer) decodeSaveRequest(w http.ResponseWriter, r *http.Request) (*types.SaveRequest, *types.SaveError) {
	body := http.MaxBytesReader(w, r.Body, int64(s.conf.MaxRequestBytes))
	defer func() {
		_ = body.Close()
	}()

	req := &types.SaveRequest{}
	if err := json.NewDecoder(body).Decode(req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &types.SaveError{
				Kind:   types.SaveErrTotalTooLarge,
				Detail: "request body too large",
				Limit:  int(maxErr.Limit),
			}
		}
		return nil, &types.SaveError{
			Kind:   types.SaveErrInvalidArgument,
			Detail: fmt.Sprintf("decode save request: %v", err),
		}
	}

	return req, nil
}

func (s *sessionServer) writeSaveResult(w http.ResponseWriter, r *http.Request, result *types.SaveResult) {
	if result.Success {
		writeJSON(r, w, http.StatusOK, result)
		return
	}

	err := statusErrorOf(result.Error)
	setRequestError(r, err)
	if result.Error.Kind == types.SaveErrRateLimitExceeded {
		w.Header().Set("Retry-After", strconv.Itoa(result.Error.RetryAfterSeconds))
	}
	writeJSON(r, w, pkgerrors.StatusOf(err).HTTPStatus(), result)
}

func (s *sessionServer) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, healthResponse{Status: "SERVING"})
}

// statusErrorOf maps a save failure back to the status it crossed the
// server with.
func statusErrorOf(e *types.SaveError) error {
	switch e.Kind {
	case types.SaveErrRateLimitExceeded:
		return pkgerrors.ResourceExhausted(e.Error())
	case types.SaveErrChannelTooLarge, types.SaveErrTotalTooLarge:
		return pkgerrors.FailedPrecond(e.Error())
	case types.SaveErrInvalidArgument:
		return pkgerrors.InvalidArgument(e.Error())
	default:
		return pkgerrors.Unavailable(e.Error())
	}
}

func writeJSON(r *http.Request, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(r.Context()).Warnf("write response: %v", err)
	}
}
