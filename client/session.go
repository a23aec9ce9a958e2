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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/pkg/autosave"
	"github.com/yorkie-team/tandem/pkg/awareness"
	"github.com/yorkie-team/tandem/pkg/presence"
)

const writeWait = 10 * time.Second

var (
	// ErrUnknownChannel occurs when editing a channel the session does not have.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNoWelcome occurs when the relay does not greet a joining participant.
	ErrNoWelcome = errors.New("awareness relay sent no welcome")
)

// Session is a session joined by a client. It mirrors the participant
// states of the relay, keeps the presence list and autosaves local edits.
type Session struct {
	client *Client
	key    string
	logger *zap.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	store    *awareness.Map
	presence *presence.Aggregator
	saver    *autosave.Saver

	mu       sync.RWMutex
	names    []string
	channels map[string]string

	readDone chan struct{}
	closed   bool
}

// Join loads the session, connects to its awareness relay and starts the
// autosave of local edits.
func (c *Client) Join(ctx context.Context, key string) (*Session, error) {
	view, err := c.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.awarenessURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("dial awareness of %s: %w", key, err)
	}

	welcome := types.AwarenessMessage{}
	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	if err := ws.ReadJSON(&welcome); err != nil || welcome.Type != types.AwarenessWelcome {
		_ = ws.Close()
		return nil, fmt.Errorf("join %s: %w", key, ErrNoWelcome)
	}
	_ = ws.SetReadDeadline(time.Time{})

	s := &Session{
		client:   c,
		key:      key,
		logger:   c.logger.With(zap.String("session", key)),
		ws:       ws,
		store:    awareness.NewMap(welcome.ConnectionID),
		channels: make(map[string]string, len(view.Channels)),
		readDone: make(chan struct{}),
	}
	for _, ch := range view.Channels {
		s.names = append(s.names, ch.Name)
		s.channels[ch.Name] = ch.Content
	}
	sort.Strings(s.names)

	s.presence = presence.NewAggregator(s.store)

	opts := append([]autosave.Option{
		autosave.WithLogger(s.logger),
		autosave.WithBaseline(view.Channels),
	}, c.options.AutoSave...)
	s.saver = autosave.New(s.Channels, func(ctx context.Context, channels []types.Channel) (*types.SaveResult, error) {
		return c.BatchSave(ctx, key, channels)
	}, opts...)
	s.saver.Start()

	go s.readLoop()

	return s, nil
}

// Key returns the key of the session.
func (s *Session) Key() string {
	return s.key
}

// ConnectionID returns the connection ID the relay assigned.
func (s *Session) ConnectionID() types.ConnectionID {
	return s.store.LocalID()
}

// Presence returns the presence aggregator of the session.
func (s *Session) Presence() *presence.Aggregator {
	return s.presence
}

// Awareness returns the mirrored participant states.
func (s *Session) Awareness() awareness.Store {
	return s.store
}

// Saver returns the autosave of the session.
func (s *Session) Saver() *autosave.Saver {
	return s.saver
}

// Publish announces the local participant to the others. The relay answers
// with the states, including the color it assigned.
func (s *Session) Publish(displayName string, avatar types.AvatarPreference) error {
	return s.write(types.AwarenessMessage{
		Type:        types.AwarenessState,
		DisplayName: displayName,
		Avatar:      avatar,
	})
}

// Edit replaces the content of a channel and schedules a save.
func (s *Session) Edit(name, content string) error {
	s.mu.Lock()
	if _, ok := s.channels[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrUnknownChannel)
	}
	s.channels[name] = content
	s.mu.Unlock()

	s.saver.Edit()
	return nil
}

// Channels returns the local content of every channel, ordered by name.
func (s *Session) Channels() []types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]types.Channel, 0, len(s.names))
	for _, name := range s.names {
		channels = append(channels, types.Channel{Name: name, Content: s.channels[name]})
	}
	return channels
}

// Leave saves pending edits one last time and disconnects from the relay.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	saveErr := s.saver.Close(ctx)
	s.presence.Close()

	s.writeMu.Lock()
	_ = s.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	s.writeMu.Unlock()
	closeErr := s.ws.Close()

	select {
	case <-s.readDone:
	case <-ctx.Done():
	}

	if saveErr != nil {
		return fmt.Errorf("final save of %s: %w", s.key, saveErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close awareness of %s: %w", s.key, closeErr)
	}
	return nil
}

func (s *Session) write(msg types.AwarenessMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (s *Session) readLoop() {
	defer close(s.readDone)

	for {
		msg := types.AwarenessMessage{}
		if err := s.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("awareness read", zap.Error(err))
			}
			s.store.Replace(nil)
			return
		}

		if msg.Type == types.AwarenessStates {
			s.store.Replace(msg.States)
		}
	}
}
