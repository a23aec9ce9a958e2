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

// Package client provides the Go client of Tandem. A client reads and saves
// sessions over HTTP and joins sessions to share presence and autosave
// edits.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/internal/version"
)

var (
	// ErrInvalidAddress occurs when the address of the server is malformed.
	ErrInvalidAddress = errors.New("invalid server address")

	// ErrUnexpectedResponse occurs when the server answers with a body the
	// client cannot read.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Client is a normal client that can communicate with the server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	key        string
	options    Options
	logger     *zap.Logger
}

// New creates an instance of Client. rpcAddr is either host:port or an
// http(s) URL.
func New(rpcAddr string, opts ...Option) (*Client, error) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	if !strings.Contains(rpcAddr, "://") {
		rpcAddr = "http://" + rpcAddr
	}
	baseURL, err := url.Parse(rpcAddr)
	if err != nil || baseURL.Host == "" {
		return nil, fmt.Errorf("%s: %w", rpcAddr, ErrInvalidAddress)
	}

	k := options.Key
	if k == "" {
		k = xid.New().String()
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := options.Logger
	if logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		key:        k,
		options:    options,
		logger:     logger,
	}, nil
}

// Key returns the key of this client.
func (c *Client) Key() string {
	return c.key
}

// GetSession returns the session of the given key, or the empty default
// session when it has never been saved.
func (c *Client) GetSession(ctx context.Context, key string) (*types.SessionView, error) {
	view := &types.SessionView{}
	if err := c.do(ctx, http.MethodGet, sessionPath(key), nil, view); err != nil {
		return nil, err
	}
	return view, nil
}

// BatchSave saves the given channels of a session. A save the server
// rejected is returned as a failed result, not as an error; the error is
// reserved for requests that did not get an answer.
func (c *Client) BatchSave(
	ctx context.Context,
	key string,
	channels []types.Channel,
) (*types.SaveResult, error) {
	body, err := json.Marshal(types.SaveRequest{EditorID: c.key, Channels: channels})
	if err != nil {
		return nil, fmt.Errorf("marshal save request: %w", err)
	}

	result := &types.SaveResult{}
	if err := c.do(ctx, http.MethodPost, sessionPath(key)+"/save", body, result); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && result.Error != nil {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

// StatusError is returned when the server answers with a failure status.
type StatusError struct {
	StatusCode int
	Err        *types.SaveError
}

// Error returns the error message.
func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Err.Error())
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns the structured failure.
func (e *StatusError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// do sends a request and decodes the JSON answer into out. Failed answers
// are decoded into out as well, since save results carry their own error.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var failure struct {
			Error *types.SaveError `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil {
			statusErr.Err = failure.Error
		}
		_ = json.Unmarshal(data, out)
		return statusErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response of %s %s: %v: %w", method, path, err, ErrUnexpectedResponse)
	}
	return nil
}

func (c *Client) awarenessURL(key string) string {
	u := *c.baseURL.JoinPath(sessionPath(key), "awareness")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func sessionPath(key string) string {
	return "sessions/" + url.PathEscape(key)
}
