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

package autosave_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/pkg/autosave"
)

const waitFor = time.Second
const tick = 5 * time.Millisecond

type editor struct {
	mu       sync.Mutex
	channels map[string]string
}

func newEditor() *editor {
	return &editor{channels: map[string]string{"html": "", "css": "", "js": ""}}
}

func (e *editor) set(name, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[name] = content
}

func (e *editor) read() []types.Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	var channels []types.Channel
	for _, name := range []string{"html", "css", "js"} {
		channels = append(channels, types.Channel{Name: name, Content: e.channels[name]})
	}
	return channels
}

type server struct {
	mu    sync.Mutex
	saves [][]types.Channel
	fail  *types.SaveError
	err   error
	block chan struct{}
}

func (s *server) save(ctx context.Context, channels []types.Channel) (*types.SaveResult, error) {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.fail != nil {
		return types.NewSaveFailure(s.fail), nil
	}
	s.saves = append(s.saves, channels)
	return types.NewSaveSuccess(types.NewSizeBreakdown(channels)), nil
}

func (s *server) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *server) last() []types.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

func setup(opts ...autosave.Option) (*editor, *server, *clock.Mock, *autosave.Saver) {
	e := newEditor()
	srv := &server{}
	clk := clock.NewMock()
	saver := autosave.New(e.read, srv.save, append([]autosave.Option{autosave.WithClock(clk)}, opts...)...)
	return e, srv, clk, saver
}

func TestSaver(t *testing.T) {
	ctx := context.Background()

	t.Run("first edit saves immediately test", func(t *testing.T) {
		e, srv, _, saver := setup()

		e.set("html", "<p>")
		saver.Edit()

		assert.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)
		assert.Equal(t, []types.Channel{{Name: "html", Content: "<p>"}}, srv.last())
	})

	t.Run("edits within the debounce delay collapse into one save test", func(t *testing.T) {
		e, srv, clk, saver := setup()

		e.set("html", "v0")
		saver.Edit()
		require.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)
		require.Eventually(t, func() bool { return saver.State() == autosave.StateIdle }, waitFor, tick)

		for i := 1; i <= 10; i++ {
			clk.Add(500 * time.Millisecond)
			e.set("html", fmt.Sprintf("v%d", i))
			saver.Edit()
			assert.Equal(t, autosave.StateDebouncePending, saver.State())
		}
		assert.Equal(t, 1, srv.count())

		// the save happens exactly the debounce delay after the last edit
		clk.Add(autosave.DefaultDebounce - time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, srv.count())

		clk.Add(time.Millisecond)
		assert.Eventually(t, func() bool { return srv.count() == 2 }, waitFor, tick)
		assert.Equal(t, []types.Channel{{Name: "html", Content: "v10"}}, srv.last())

		clk.Add(10 * autosave.DefaultDebounce)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 2, srv.count())
	})

	t.Run("identical content is not written test", func(t *testing.T) {
		e, srv, clk, saver := setup(autosave.WithBaseline([]types.Channel{
			{Name: "html", Content: "<p>"},
		}))

		e.set("html", "<p>")
		saver.Edit()
		clk.Add(autosave.DefaultDebounce)
		time.Sleep(20 * time.Millisecond)
		assert.NoError(t, saver.Flush(ctx))
		assert.Equal(t, 0, srv.count())

		e.set("css", "p{}")
		assert.NoError(t, saver.Flush(ctx))
		assert.NoError(t, saver.Flush(ctx))
		assert.Equal(t, 1, srv.count())
		assert.Equal(t, []types.Channel{{Name: "css", Content: "p{}"}}, srv.last())
	})

	t.Run("periodic save test", func(t *testing.T) {
		e, srv, clk, saver := setup(autosave.WithBaseline([]types.Channel{{Name: "html", Content: ""}}))
		saver.Start()
		defer func() {
			assert.NoError(t, saver.Close(ctx))
		}()

		e.set("js", "run()")
		time.Sleep(10 * time.Millisecond)
		clk.Add(autosave.DefaultInterval)
		assert.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)
	})

	t.Run("status indicator test", func(t *testing.T) {
		var mu sync.Mutex
		var seen []autosave.Status
		seenLen := func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(seen)
		}
		e, srv, clk, saver := setup(autosave.WithStatusListener(func(status autosave.Status, _ *types.SaveError) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, status)
		}))

		e.set("html", "a")
		require.NoError(t, saver.Flush(ctx))
		status, _ := saver.Status()
		assert.Equal(t, autosave.StatusSaved, status)

		clk.Add(autosave.DefaultSavedDisplay)
		assert.Eventually(t, func() bool { return seenLen() == 3 }, waitFor, tick)
		status, _ = saver.Status()
		assert.Equal(t, autosave.StatusIdle, status)

		srv.mu.Lock()
		srv.fail = &types.SaveError{Kind: types.SaveErrRateLimitExceeded, RetryAfterSeconds: 12}
		srv.mu.Unlock()

		e.set("html", "b")
		err := saver.Flush(ctx)
		var saveErr *types.SaveError
		require.True(t, errors.As(err, &saveErr))
		assert.Equal(t, types.SaveErrRateLimitExceeded, saveErr.Kind)

		status, lastErr := saver.Status()
		assert.Equal(t, autosave.StatusError, status)
		assert.Equal(t, 12, lastErr.RetryAfterSeconds)
		assert.Equal(t, autosave.StateCooldownAfterError, saver.State())

		clk.Add(autosave.DefaultErrorDisplay)
		assert.Eventually(t, func() bool { return seenLen() == 6 }, waitFor, tick)
		assert.Equal(t, autosave.StateIdle, saver.State())

		// the failed content is still pending and goes out with the next save
		srv.mu.Lock()
		srv.fail = nil
		srv.mu.Unlock()
		require.NoError(t, saver.Flush(ctx))
		assert.Equal(t, []types.Channel{{Name: "html", Content: "b"}}, srv.last())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []autosave.Status{
			autosave.StatusSaving, autosave.StatusSaved, autosave.StatusIdle,
			autosave.StatusSaving, autosave.StatusError, autosave.StatusIdle,
			autosave.StatusSaving, autosave.StatusSaved,
		}, seen)
	})

	t.Run("transport error is a persistence failure test", func(t *testing.T) {
		e, srv, _, saver := setup()
		srv.err = errors.New("connection refused")

		e.set("html", "a")
		err := saver.Flush(ctx)
		var saveErr *types.SaveError
		require.True(t, errors.As(err, &saveErr))
		assert.Equal(t, types.SaveErrPersistenceFailure, saveErr.Kind)
	})

	t.Run("trigger during a save in flight is skipped test", func(t *testing.T) {
		e, srv, _, saver := setup()
		srv.block = make(chan struct{})

		e.set("html", "a")
		saver.Edit()
		require.Eventually(t, func() bool { return saver.State() == autosave.StateSaving }, waitFor, tick)

		e.set("html", "b")
		assert.NoError(t, saver.Flush(ctx))

		close(srv.block)
		assert.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)
		assert.Equal(t, []types.Channel{{Name: "html", Content: "a"}}, srv.last())
	})

	t.Run("debounce fired during a save in flight is re-armed test", func(t *testing.T) {
		e, srv, clk, saver := setup()
		srv.block = make(chan struct{})

		e.set("html", "a")
		saver.Edit()
		require.Eventually(t, func() bool { return saver.State() == autosave.StateSaving }, waitFor, tick)

		e.set("html", "b")
		saver.Edit()
		clk.Add(autosave.DefaultDebounce)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, autosave.StateSaving, saver.State())

		close(srv.block)
		require.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)
		require.Eventually(t, func() bool {
			return saver.State() == autosave.StateDebouncePending
		}, waitFor, tick)

		clk.Add(autosave.DefaultDebounce)
		assert.Eventually(t, func() bool { return srv.count() == 2 }, waitFor, tick)
		assert.Equal(t, []types.Channel{{Name: "html", Content: "b"}}, srv.last())
	})

	t.Run("close waits for a debounced save racing it test", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			e, srv, clk, saver := setup()

			e.set("html", "a")
			saver.Edit()
			require.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)
			require.Eventually(t, func() bool { return saver.State() == autosave.StateIdle }, waitFor, tick)

			e.set("html", "ab")
			saver.Edit()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				clk.Add(autosave.DefaultDebounce)
			}()
			require.NoError(t, saver.Close(ctx))
			assert.Equal(t, []types.Channel{{Name: "html", Content: "ab"}}, srv.last())
			wg.Wait()

			time.Sleep(5 * time.Millisecond)
			assert.Equal(t, 2, srv.count())
		}
	})

	t.Run("close makes a final save test", func(t *testing.T) {
		e, srv, clk, saver := setup()

		e.set("html", "a")
		saver.Edit()
		require.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)

		e.set("html", "ab")
		saver.Edit()
		require.NoError(t, saver.Close(ctx))
		assert.Equal(t, 2, srv.count())
		assert.Equal(t, []types.Channel{{Name: "html", Content: "ab"}}, srv.last())

		// the debounce timer was canceled
		clk.Add(autosave.DefaultDebounce)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 2, srv.count())

		saver.Edit()
		assert.ErrorIs(t, saver.Flush(ctx), autosave.ErrClosed)
		assert.NoError(t, saver.Close(ctx))
	})
}
