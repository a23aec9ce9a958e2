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

// Package sessions provides the server side of session persistence: reads,
// rate-limited and size-checked batch saves, and the sweep of inactive
// sessions.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"math"
	gotime "time"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/internal/validation"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/backend/database"
	"github.com/yorkie-team/tandem/server/backend/sync"
	"github.com/yorkie-team/tandem/server/logging"
)

type saveRequest struct {
	Key      string         `validate:"required,max=120,session_key"`
	EditorID string         `validate:"required,max=128"`
	Channels []channelInput `validate:"required,min=1,dive"`
}

type channelInput struct {
	Name string `validate:"required,channel_name"`
}

// ValidateKey returns an error if the given session key is malformed.
func ValidateKey(key string) error {
	if err := validation.ValidateValue(key, "required,max=120,session_key"); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidSessionKey)
	}
	return nil
}

// Get returns the session of the given key. A key that has never been saved
// yields the virtual default session, which is not stored.
func Get(
	ctx context.Context,
	be *backend.Backend,
	key string,
) (*types.SessionView, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	if info, ok := be.Cache.Session.Get(key); ok {
		return info.ToView(be.Config.Channels), nil
	}

	info, err := be.DB.FindSessionInfoByKey(ctx, key)
	if errors.Is(err, database.ErrSessionNotFound) {
		return types.NewDefaultSessionView(key, be.Config.Channels, be.Clock.Now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %v: %w", key, err, ErrPersistenceFailure)
	}

	be.Cache.Session.Add(key, info)
	return info.ToView(be.Config.Channels), nil
}

// BatchSave writes the given channels of a session in one operation. It
// rejects the save without mutating anything when the session already took
// the maximum number of saves in the window, or when a channel or the
// submitted channels together are over the size limits. Saves of one session
// in this process are serialized.
func BatchSave(
	ctx context.Context,
	be *backend.Backend,
	key string,
	channels []types.Channel,
	editorID string,
) *types.SaveResult {
	start := be.Clock.Now()

	sizes, err := batchSave(ctx, be, key, channels, editorID)

	var result *types.SaveResult
	if err != nil {
		result = types.NewSaveFailure(ToSaveError(err))
		be.Metrics.AddSave(string(result.Error.Kind))
		if result.Error.Kind == types.SaveErrPersistenceFailure {
			logging.From(ctx).Errorf("SAVE: %s by %s failed: %v", key, editorID, err)
		} else {
			logging.From(ctx).Debugf("SAVE: %s by %s rejected: %v", key, editorID, err)
		}
	} else {
		result = types.NewSaveSuccess(sizes)
		be.Metrics.AddSave("success")
		be.Metrics.AddSavedBytes(sizes.Total)
	}
	be.Metrics.ObserveSaveResponseSeconds(be.Clock.Since(start).Seconds())

	return result
}

func batchSave(
	ctx context.Context,
	be *backend.Backend,
	key string,
	channels []types.Channel,
	editorID string,
) (*types.SizeBreakdown, error) {
	if err := validateSave(be.Config, key, channels, editorID); err != nil {
		return nil, err
	}

	locker := be.Lockers.Locker(sync.SessionKey(key))
	if err := locker.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock session %s: %v: %w", key, err, ErrPersistenceFailure)
	}
	defer func() {
		if err := locker.Unlock(); err != nil {
			logging.From(ctx).Error(err)
		}
	}()

	now := be.Clock.Now()
	window := be.Config.ParseRateLimitWindow()

	// 01. Fetch the current record. Saves are checked against storage, not
	// the read cache.
	info, err := be.DB.FindSessionInfoByKey(ctx, key)
	if errors.Is(err, database.ErrSessionNotFound) {
		info = database.NewSessionInfo(key)
	} else if err != nil {
		return nil, fmt.Errorf("find session %s: %v: %w", key, err, ErrPersistenceFailure)
	}

	// 02. Check the rate limit of the window measured from the last save.
	if !info.IsNew() {
		elapsed := now.Sub(info.LastEditedAt)
		if elapsed < window && info.SaveCount >= be.Config.MaxSavesPerWindow {
			return nil, rateLimitError(retryAfterSeconds(window - elapsed))
		}
	}

	// 03. Check the sizes of the channels and of the resulting record.
	sizes := types.NewSizeBreakdown(channels)
	for _, ch := range channels {
		if size := sizes.PerChannel[ch.Name]; size > be.Config.MaxChannelBytes {
			return nil, channelTooLargeError(ch.Name, size, be.Config.MaxChannelBytes)
		}
	}
	// The total limit applies to the stored record, channels kept from
	// earlier saves included.
	if total := info.SizeAfter(channels); total > int64(be.Config.MaxTotalBytes) {
		return nil, totalTooLargeError(int(total), be.Config.MaxTotalBytes)
	}

	// 04. Write the whole record at once.
	info.ApplySave(channels, editorID, now, window)
	if err := be.DB.UpsertSessionInfo(ctx, info); err != nil {
		be.Cache.Session.Remove(key)
		return nil, fmt.Errorf("save session %s: %v: %w", key, err, ErrPersistenceFailure)
	}
	be.Cache.Session.Add(key, info)

	return sizes, nil
}

func validateSave(
	conf *backend.Config,
	key string,
	channels []types.Channel,
	editorID string,
) error {
	req := saveRequest{Key: key, EditorID: editorID}
	for _, ch := range channels {
		req.Channels = append(req.Channels, channelInput{Name: ch.Name})
	}
	if err := validation.ValidateStruct(req); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidSaveRequest)
	}

	known := make(map[string]bool, len(conf.Channels))
	for _, name := range conf.Channels {
		known[name] = true
	}

	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if !known[ch.Name] {
			return fmt.Errorf("unknown channel %q: %w", ch.Name, ErrInvalidSaveRequest)
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate channel %q: %w", ch.Name, ErrInvalidSaveRequest)
		}
		seen[ch.Name] = true
	}

	return nil
}

// retryAfterSeconds rounds the remaining window up to whole seconds, at
// least one.
func retryAfterSeconds(remaining gotime.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
