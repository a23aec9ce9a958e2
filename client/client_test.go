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

package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/client"
	"github.com/yorkie-team/tandem/pkg/autosave"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/backend/housekeeping"
	"github.com/yorkie-team/tandem/server/profiling/prometheus"
	"github.com/yorkie-team/tandem/server/rpc"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

func newTestServer(t *testing.T, maxSaves int) *httptest.Server {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	be, err := backend.New(&backend.Config{
		Channels:          []string{"html", "css", "js"},
		MaxChannelBytes:   1024,
		MaxTotalBytes:     3072,
		RateLimitWindow:   "60s",
		MaxSavesPerWindow: maxSaves,
		SessionCacheSize:  100,
		SessionCacheTTL:   "1s",
		Hostname:          "test",
	}, nil, nil, &housekeeping.Config{Hour: 3, RetentionPeriod: "720h", CandidatesLimit: 10}, metrics)
	require.NoError(t, err)

	rpcServer, err := rpc.NewServer(&rpc.Config{
		Port:              11201,
		MaxRequestBytes:   8192,
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
	return ts
}

func newClient(t *testing.T, ts *httptest.Server, key string, opts ...client.Option) *client.Client {
	cli, err := client.New(ts.URL, append([]client.Option{
		client.WithKey(key),
		client.WithLogger(zap.NewNop()),
	}, opts...)...)
	require.NoError(t, err)
	return cli
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid address test", func(t *testing.T) {
		_, err := client.New("http://")
		assert.ErrorIs(t, err, client.ErrInvalidAddress)
	})

	t.Run("get and save test", func(t *testing.T) {
		ts := newTestServer(t, 1)
		cli := newClient(t, ts, "alice")
		assert.Equal(t, "alice", cli.Key())

		view, err := cli.GetSession(ctx, "pen-1")
		require.NoError(t, err)
		assert.False(t, view.Persisted)

		result, err := cli.BatchSave(ctx, "pen-1", []types.Channel{{Name: "html", Content: "<i>"}})
		require.NoError(t, err)
		assert.True(t, result.Success)

		result, err = cli.BatchSave(ctx, "pen-1", []types.Channel{{Name: "html", Content: "<u>"}})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, types.SaveErrRateLimitExceeded, result.Error.Kind)

		view, err = cli.GetSession(ctx, "pen-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", view.LastEditorID)
		html, _ := view.Channel("html")
		assert.Equal(t, "<i>", html.Content)
	})

	t.Run("invalid key is a status error test", func(t *testing.T) {
		ts := newTestServer(t, 20)
		cli := newClient(t, ts, "alice")

		_, err := cli.GetSession(ctx, "bad key")
		var statusErr *client.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 400, statusErr.StatusCode)
		assert.Equal(t, types.SaveErrInvalidArgument, statusErr.Err.Kind)
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("presence of joined participants test", func(t *testing.T) {
		ts := newTestServer(t, 20)

		alice, err := newClient(t, ts, "alice").Join(ctx, "room-1")
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, alice.Leave(ctx))
		}()
		require.NoError(t, alice.Publish("Alice", types.AvatarInitials))

		bob, err := newClient(t, ts, "bob").Join(ctx, "room-1")
		require.NoError(t, err)
		require.NoError(t, bob.Publish("Bob", types.AvatarImage))

		assert.Eventually(t, func() bool {
			return alice.Presence().Count() == 2 && bob.Presence().Count() == 2
		}, waitFor, tick)

		list := bob.Presence().Participants()
		assert.Equal(t, bob.ConnectionID(), list[0].ConnectionID)
		assert.True(t, list[0].IsLocal)
		assert.Equal(t, "Alice", list[1].DisplayName)
		assert.NotEqual(t, list[0].Color, list[1].Color)

		local, ok := alice.Presence().Local()
		require.True(t, ok)
		assert.Equal(t, "Alice", local.DisplayName)

		require.NoError(t, bob.Leave(ctx))
		assert.Eventually(t, func() bool {
			return alice.Presence().Count() == 1
		}, waitFor, tick)
	})

	t.Run("edits are autosaved test", func(t *testing.T) {
		ts := newTestServer(t, 20)
		cli := newClient(t, ts, "carol", client.WithAutoSave(autosave.WithDebounce(50*time.Millisecond)))

		s, err := cli.Join(ctx, "pen-2")
		require.NoError(t, err)
		assert.Equal(t, "pen-2", s.Key())

		assert.ErrorIs(t, s.Edit("python", "x"), client.ErrUnknownChannel)

		require.NoError(t, s.Edit("html", "<h1>"))
		assert.Eventually(t, func() bool {
			view, err := cli.GetSession(ctx, "pen-2")
			return err == nil && view.Persisted
		}, waitFor, tick)

		require.NoError(t, s.Edit("css", "h1{}"))
		require.NoError(t, s.Leave(ctx))
		assert.NoError(t, s.Leave(ctx))

		view, err := cli.GetSession(ctx, "pen-2")
		require.NoError(t, err)
		css, _ := view.Channel("css")
		assert.Equal(t, "h1{}", css.Content)
		html, _ := view.Channel("html")
		assert.Equal(t, "<h1>", html.Content)
	})

	t.Run("join resumes saved content test", func(t *testing.T) {
		ts := newTestServer(t, 20)
		cli := newClient(t, ts, "dave")

		result, err := cli.BatchSave(ctx, "pen-3", []types.Channel{{Name: "js", Content: "go()"}})
		require.NoError(t, err)
		require.True(t, result.Success)

		s, err := cli.Join(ctx, "pen-3")
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, s.Leave(ctx))
		}()

		assert.Contains(t, s.Channels(), types.Channel{Name: "js", Content: "go()"})
		assert.NoError(t, s.Saver().Flush(ctx))
		status, _ := s.Saver().Status()
		assert.Equal(t, autosave.StatusIdle, status)
	})
}
