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

package rpc_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/pkg/palette"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/backend/housekeeping"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
	"github.com/yorkie-team/tandem/server/rpc"
)

func newTestServer(t *testing.T, conf *backend.Config) (*httptest.Server, *backend.Backend) {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	if conf == nil {
		conf = &backend.Config{
			Channels:          []string{"html", "css", "js"},
			MaxChannelBytes:   1024,
			MaxTotalBytes:     2048,
			RateLimitWindow:   "60s",
			MaxSavesPerWindow: 20,
			SessionCacheSize:  100,
			SessionCacheTTL:   "10s",
			Hostname:          "test",
		}
	}

	be, err := backend.New(
		conf,
		nil,
		nil,
		&housekeeping.Config{Hour: 3, RetentionPeriod: "720h", CandidatesLimit: 10},
		metrics,
	)
	require.NoError(t, err)

	rpcServer, err := rpc.NewServer(&rpc.Config{
		Port:              11101,
		MaxRequestBytes:   4096,
		PongWait:          "60s",
		BroadcastInterval: "10ms",
	}, be)
	require.NoError(t, err)

	ts := httptest.NewServer(rpcServer.Handler())
	t.Cleanup(func() {
		rpcServer.Shutdown(false)
		ts.Close()
		assert.NoError(t, be.Shutdown())
	})

	return ts, be
}

func save(t *testing.T, ts *httptest.Server, key string, body any) (*http.Response, *types.SaveResult) {
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/sessions/"+key+"/save", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, resp.Body.Close())
	}()

	result := &types.SaveResult{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(result))
	return resp, result
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		conf := &rpc.Config{
			Port:              11101,
			MaxRequestBytes:   4096,
			PongWait:          "60s",
			BroadcastInterval: "50ms",
		}
		assert.NoError(t, conf.Validate())
		assert.Equal(t, time.Minute, conf.ParsePongWait())

		conf.Port = 0
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidRPCPort)

		conf.Port = 11101
		conf.MaxRequestBytes = 0
		assert.ErrorIs(t, conf.Validate(), rpc.ErrInvalidMaxRequestBytes)

		conf.MaxRequestBytes = 4096
		conf.PongWait = "0s"
		assert.Error(t, conf.Validate())

		conf.PongWait = "60s"
		conf.BroadcastInterval = "often"
		assert.Error(t, conf.Validate())
	})
}

func TestSessionAPI(t *testing.T) {
	t.Run("health check test", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, resp.Body.Close())
		}()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(rpc.RequestIDHeader))
	})

	t.Run("read then save then read test", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)

		resp, err := http.Get(ts.URL + "/sessions/pen-1")
		require.NoError(t, err)
		view := &types.SessionView{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(view))
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, view.Persisted)
		assert.Len(t, view.Channels, 3)

		resp, result := save(t, ts, "pen-1", types.SaveRequest{
			EditorID: "alice",
			Channels: []types.Channel{{Name: "css", Content: "body{}"}},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, result.Success)
		assert.Equal(t, 6, result.Sizes.Total)

		resp, err = http.Get(ts.URL + "/sessions/pen-1")
		require.NoError(t, err)
		view = &types.SessionView{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(view))
		assert.NoError(t, resp.Body.Close())
		assert.True(t, view.Persisted)
		assert.Equal(t, "alice", view.LastEditorID)
		css, ok := view.Channel("css")
		require.True(t, ok)
		assert.Equal(t, "body{}", css.Content)
	})

	t.Run("invalid session key test", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)

		resp, err := http.Get(ts.URL + "/sessions/bad%20key")
		require.NoError(t, err)
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("save failures map to http statuses test", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)

		resp, result := save(t, ts, "pen-2", map[string]any{"editorId": 7})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, types.SaveErrInvalidArgument, result.Error.Kind)

		resp, result = save(t, ts, "pen-2", types.SaveRequest{
			EditorID: "alice",
			Channels: []types.Channel{{Name: "python", Content: "print()"}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, types.SaveErrInvalidArgument, result.Error.Kind)

		resp, result = save(t, ts, "pen-2", types.SaveRequest{
			EditorID: "alice",
			Channels: []types.Channel{{Name: "js", Content: strings.Repeat("x", 1025)}},
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, types.SaveErrChannelTooLarge, result.Error.Kind)
		assert.Equal(t, "js", result.Error.Channel)
		assert.Equal(t, 1025, result.Error.Size)
		assert.Equal(t, 1024, result.Error.Limit)

		resp, result = save(t, ts, "pen-2", types.SaveRequest{
			EditorID: "alice",
			Channels: []types.Channel{{Name: "js", Content: strings.Repeat("x", 5000)}},
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, types.SaveErrTotalTooLarge, result.Error.Kind)
		assert.Equal(t, 4096, result.Error.Limit)
	})

	t.Run("rate limited save sets retry after test", func(t *testing.T) {
		ts, _ := newTestServer(t, &backend.Config{
			Channels:          []string{"html"},
			MaxChannelBytes:   1024,
			MaxTotalBytes:     1024,
			RateLimitWindow:   "60s",
			MaxSavesPerWindow: 2,
			SessionCacheSize:  10,
			SessionCacheTTL:   "10s",
			Hostname:          "test",
		})

		req := types.SaveRequest{EditorID: "bob", Channels: []types.Channel{{Name: "html", Content: "<b>"}}}
		for i := 0; i < 2; i++ {
			resp, result := save(t, ts, "pen-3", req)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, result.Success)
		}

		resp, result := save(t, ts, "pen-3", req)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, types.SaveErrRateLimitExceeded, result.Error.Kind)
		assert.Positive(t, result.Error.RetryAfterSeconds)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})
}

func dial(t *testing.T, ts *httptest.Server, key string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + key + "/awareness"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ws.Close()
	})
	return ws
}

func read(t *testing.T, ws *websocket.Conn) types.AwarenessMessage {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg := types.AwarenessMessage{}
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// readStates reads until a states message satisfies the condition.
func readStates(t *testing.T, ws *websocket.Conn, cond func([]types.ParticipantState) bool) []types.ParticipantState {
	for {
		msg := read(t, ws)
		if msg.Type == types.AwarenessStates && cond(msg.States) {
			return msg.States
		}
	}
}

func TestAwarenessRelay(t *testing.T) {
	t.Run("join publishes state with a color test", func(t *testing.T) {
		ts, be := newTestServer(t, nil)

		alice := dial(t, ts, "room-1")
		welcome := read(t, alice)
		require.Equal(t, types.AwarenessWelcome, welcome.Type)
		aliceID := welcome.ConnectionID
		assert.NotZero(t, aliceID)

		require.NoError(t, alice.WriteJSON(types.AwarenessMessage{
			Type:        types.AwarenessState,
			DisplayName: "Alice",
			Avatar:      types.AvatarIdenticon,
		}))
		states := readStates(t, alice, func(s []types.ParticipantState) bool { return len(s) == 1 })
		assert.Equal(t, aliceID, states[0].ConnectionID)
		assert.Equal(t, "Alice", states[0].DisplayName)
		assert.Equal(t, types.AvatarIdenticon, states[0].Avatar)
		assert.True(t, palette.Default.Contains(states[0].Color))

		bob := dial(t, ts, "room-1")
		bobID := read(t, bob).ConnectionID
		require.NoError(t, bob.WriteJSON(types.AwarenessMessage{Type: types.AwarenessState, DisplayName: "Bob"}))

		states = readStates(t, alice, func(s []types.ParticipantState) bool { return len(s) == 2 })
		assert.Equal(t, aliceID, states[0].ConnectionID)
		assert.Equal(t, bobID, states[1].ConnectionID)
		assert.NotEqual(t, states[0].Color, states[1].Color)
		assert.Equal(t, 2, be.Colors.Stats().Connections)

		require.NoError(t, bob.Close())
		states = readStates(t, alice, func(s []types.ParticipantState) bool { return len(s) == 1 })
		assert.Equal(t, aliceID, states[0].ConnectionID)
		assert.Eventually(t, func() bool {
			return be.Colors.Stats().Connections == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("sessions are isolated test", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)

		a := dial(t, ts, "room-a")
		read(t, a)
		b := dial(t, ts, "room-b")
		read(t, b)

		require.NoError(t, b.WriteJSON(types.AwarenessMessage{Type: types.AwarenessState, DisplayName: "B"}))
		readStates(t, b, func(s []types.ParticipantState) bool { return len(s) == 1 })

		require.NoError(t, a.WriteJSON(types.AwarenessMessage{Type: types.AwarenessState, DisplayName: "A"}))
		states := readStates(t, a, func(s []types.ParticipantState) bool { return len(s) > 0 })
		require.Len(t, states, 1)
		assert.Equal(t, "A", states[0].DisplayName)
	})

	t.Run("invalid session key is rejected test", func(t *testing.T) {
		ts, _ := newTestServer(t, nil)

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/bad%20key/awareness"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		assert.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
