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

package client

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/pkg/autosave"
)

// Option configures Options.
type Option func(*Options)

// Options configures how we set up the client.
type Options struct {
	// Key is the key of the client. Saves are recorded with it as the editor.
	Key string

	// HTTPClient is the client requests are sent with.
	HTTPClient *http.Client

	// AutoSave configures the saver of joined sessions.
	AutoSave []autosave.Option

	// Logger is the Logger of the client.
	Logger *zap.Logger
}

// WithKey configures the key of the client.
func WithKey(key string) Option {
	return func(o *Options) { o.Key = key }
}

// WithHTTPClient configures the HTTP client of the client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) { o.HTTPClient = client }
}

// WithAutoSave configures the saver of joined sessions.
func WithAutoSave(opts ...autosave.Option) Option {
	return func(o *Options) { o.AutoSave = append(o.AutoSave, opts...) }
}

// WithLogger configures the Logger of the client.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
