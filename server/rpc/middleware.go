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
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/xid"

	"github.com/yorkie-team/tandem/internal/version"
	"github.com/yorkie-team/tandem/server/logging"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
)

// RequestIDHeader carries the ID of a request in both directions.
const RequestIDHeader = "X-Request-Id"

type requestStateKey struct{}

// requestState lets a handler hand its error to the middleware, which logs
// the request once it is finished.
type requestState struct {
	err error
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	state := &requestState{}
	return context.WithValue(ctx, requestStateKey{}, state), state
}

// setRequestError records the error of the current request.
func setRequestError(r *http.Request, err error) {
	if state, ok := r.Context().Value(requestStateKey{}).(*requestState); ok {
		state.err = err
	}
}

// newLoggingMiddleware logs every request with its own request logger and
// counts it in the metrics. The route template is used instead of the path
// so that session keys do not blow up the label cardinality.
func newLoggingMiddleware(metrics *prometheus.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = xid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)
			w.Header().Set("Server", "tandem/"+version.Version)

			logger := logging.New(id)
			ctx, state := withRequestState(logging.With(r.Context(), logger))

			m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))

			route := routeOf(r)
			logging.LogRequest(logger, r.Method, r.URL.Path, m.Code, m.Duration, state.err)
			if metrics != nil {
				metrics.AddServerHandledCounter(r.Method, route, m.Code)
				metrics.ObserveServerHandledSeconds(route, m.Duration.Seconds())
			}
		})
	}
}

func routeOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unknown"
}
