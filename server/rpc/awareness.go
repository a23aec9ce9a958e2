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
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/pkg/awareness"
	pkgerrors "github.com/yorkie-team/tandem/pkg/errors"
	"github.com/yorkie-team/tandem/pkg/limit"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/logging"
	"github.com/yorkie-team/tandem/server/sessions"
)

const (
	writeWait         = 10 * time.Second
	maxMessageBytes   = 4096
	sendBufferSize    = 64
	messagesPerSecond = 20
	messageBurst      = 40

	joinTrackedAddrs = 10000
	joinIdleTTL      = 10 * time.Minute
	joinInterval     = time.Second
	joinBurst        = 30
)

// ErrTooManyJoins is returned when one address opens awareness connections
// faster than allowed.
var ErrTooManyJoins = pkgerrors.ResourceExhausted("too many awareness joins").WithCode("ErrTooManyJoins")

// relay carries the participant states of every session between the
// connections joined to it. Each session is a room holding the replicated
// store; any change of the store is broadcast to the room, coalesced by the
// broadcast interval.
type relay struct {
	be       *backend.Backend
	conf     *Config
	upgrader websocket.Upgrader
	joins    *limit.Keyed[string]
	nextID   atomic.Uint64

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

func newRelay(conf *Config, be *backend.Backend) *relay {
	return &relay{
		be:   be,
		conf: conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		joins: limit.NewKeyed[string](joinTrackedAddrs, joinIdleTTL, joinInterval, joinBurst),
		rooms: make(map[string]*room),
	}
}

type room struct {
	key         string
	store       *awareness.Map
	throttler   *limit.Throttler
	unsubscribe func()

	mu    sync.Mutex
	conns map[types.ConnectionID]*conn
}

func (rm *room) broadcast() {
	data, err := json.Marshal(types.AwarenessMessage{
		Type:   types.AwarenessStates,
		States: rm.store.List(),
	})
	if err != nil {
		logging.DefaultLogger().Errorf("AWARENESS: marshal states of %s: %v", rm.key, err)
		return
	}

	rm.mu.Lock()
	conns := make([]*conn, 0, len(rm.conns))
	for _, c := range rm.conns {
		conns = append(conns, c)
	}
	rm.mu.Unlock()

	for _, c := range conns {
		c.enqueue(data)
	}
}

type conn struct {
	id   types.ConnectionID
	ws   *websocket.Conn
	send chan []byte
	lim  *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

// enqueue hands a frame to the write pump. A connection that cannot keep up
// is closed rather than blocking the room.
func (c *conn) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		logging.DefaultLogger().Warnf("AWARENESS: connection %s is too slow, closing", c.id)
		c.close()
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// serve upgrades the request and attaches the connection to the session.
func (rl *relay) serve(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := sessions.ValidateKey(key); err != nil {
		setRequestError(r, err)
		writeJSON(r, w, http.StatusBadRequest, errorResponse{Error: sessions.ToSaveError(err)})
		return
	}

	if !rl.joins.Allow(remoteHost(r)) {
		setRequestError(r, ErrTooManyJoins)
		writeJSON(r, w, http.StatusTooManyRequests, errorResponse{Error: &types.SaveError{
			Kind:   types.SaveErrRateLimitExceeded,
			Detail: ErrTooManyJoins.Error(),
		}})
		return
	}

	ws, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		setRequestError(r, err)
		return
	}

	c := &conn{
		id:   types.ConnectionID(rl.nextID.Add(1)),
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		lim:  rate.NewLimiter(messagesPerSecond, messageBurst),
		done: make(chan struct{}),
	}

	rm, ok := rl.join(key, c)
	if !ok {
		c.close()
		return
	}

	welcome, err := json.Marshal(types.AwarenessMessage{
		Type:         types.AwarenessWelcome,
		ConnectionID: c.id,
	})
	if err != nil {
		rl.leave(rm, c)
		return
	}
	c.enqueue(welcome)
	rm.throttler.ExecuteOrSchedule(rm.broadcast)

	if !rl.be.Background.AttachGoroutine(func(ctx context.Context) {
		rl.writePump(ctx, c)
	}, "awareness-write") {
		rl.leave(rm, c)
		return
	}
	if !rl.be.Background.AttachGoroutine(func(ctx context.Context) {
		rl.readPump(ctx, rm, c)
	}, "awareness-read") {
		rl.leave(rm, c)
	}
}

func (rl *relay) join(key string, c *conn) (*room, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.closed {
		return nil, false
	}

	rm, ok := rl.rooms[key]
	if !ok {
		rm = &room{
			key:       key,
			store:     awareness.NewMap(0),
			throttler: limit.NewThrottler(rl.conf.ParseBroadcastInterval()),
			conns:     make(map[types.ConnectionID]*conn),
		}
		rm.unsubscribe = rm.store.Subscribe(func() {
			rm.throttler.ExecuteOrSchedule(rm.broadcast)
		})
		rl.rooms[key] = rm
	}

	rm.mu.Lock()
	rm.conns[c.id] = c
	rm.mu.Unlock()

	if rl.be.Metrics != nil {
		rl.be.Metrics.AddAwarenessConnections()
	}
	logging.DefaultLogger().Debugf("AWARENESS: %s joined %s", c.id, key)
	return rm, true
}

// leave detaches the connection: its state vanishes from the room and its
// color is released. The room is dropped with its last connection.
func (rl *relay) leave(rm *room, c *conn) {
	c.close()

	rl.mu.Lock()
	rm.mu.Lock()
	_, present := rm.conns[c.id]
	delete(rm.conns, c.id)
	empty := len(rm.conns) == 0
	rm.mu.Unlock()
	if empty && rl.rooms[rm.key] == rm {
		delete(rl.rooms, rm.key)
		rm.unsubscribe()
	}
	rl.mu.Unlock()

	if !present {
		return
	}

	rl.be.Colors.Release(rm.key, c.id)
	rm.store.Remove(c.id)

	if rl.be.Metrics != nil {
		rl.be.Metrics.RemoveAwarenessConnections()
	}
	logging.DefaultLogger().Debugf("AWARENESS: %s left %s", c.id, rm.key)
}

// publish stores the state a participant sent, with the color assigned to
// its connection.
func (rl *relay) publish(rm *room, c *conn, msg *types.AwarenessMessage) {
	avatar := msg.Avatar
	if !avatar.Valid() {
		avatar = types.AvatarInitials
	}

	remote := make(map[types.ConnectionID]string)
	for id, state := range rm.store.Snapshot().States {
		remote[id] = state.Color
	}

	_, assigned := rl.be.Colors.ColorOf(rm.key, c.id)
	candidate := rl.be.Colors.Palette().Candidate(c.id, msg.DisplayName)
	color := rl.be.Colors.Assign(rm.key, c.id, candidate, remote)
	if !assigned && rl.be.Metrics != nil {
		if color == candidate {
			rl.be.Metrics.AddColorAssigned("candidate")
		} else {
			rl.be.Metrics.AddColorAssigned("fallback")
		}
	}

	rm.store.Set(types.ParticipantState{
		ConnectionID: c.id,
		DisplayName:  msg.DisplayName,
		Avatar:       avatar,
		Color:        color,
	})
}

func (rl *relay) readPump(ctx context.Context, rm *room, c *conn) {
	defer rl.leave(rm, c)

	pongWait := rl.conf.ParsePongWait()
	c.ws.SetReadLimit(maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				ctx.Err() == nil {
				logging.From(ctx).Debugf("AWARENESS: read %s: %v", c.id, err)
			}
			return
		}

		if !c.lim.Allow() {
			rl.countMessage("dropped")
			continue
		}

		msg := &types.AwarenessMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			rl.countMessage("invalid")
			continue
		}

		switch msg.Type {
		case types.AwarenessState:
			rl.countMessage(string(msg.Type))
			rl.publish(rm, c, msg)
		default:
			rl.countMessage("invalid")
		}
	}
}

func (rl *relay) writePump(ctx context.Context, c *conn) {
	ticker := time.NewTicker(rl.conf.ParsePongWait() * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait),
			)
			return
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (rl *relay) countMessage(msgType string) {
	if rl.be.Metrics != nil {
		rl.be.Metrics.AddAwarenessMessage(msgType)
	}
}

// close disconnects every connection and refuses new ones.
func (rl *relay) close() {
	rl.mu.Lock()
	rl.closed = true
	var conns []*conn
	for _, rm := range rl.rooms {
		rm.mu.Lock()
		for _, c := range rm.conns {
			conns = append(conns, c)
		}
		rm.mu.Unlock()
	}
	rl.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// stats returns the number of rooms and connections.
func (rl *relay) stats() (rooms, conns int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for _, rm := range rl.rooms {
		rm.mu.Lock()
		conns += len(rm.conns)
		rm.mu.Unlock()
	}
	return len(rl.rooms), conns
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
