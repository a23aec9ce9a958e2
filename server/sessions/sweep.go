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

package sessions

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/yorkie-team/tandem/api/types"
	"github.com/yorkie-team/tandem/server/backend"
	"github.com/yorkie-team/tandem/server/backend/database"
	"github.com/yorkie-team/tandem/server/backend/sync"
	"github.com/yorkie-team/tandem/server/logging"
)

// DefaultSweepPageSize is the number of candidates fetched per query.
const DefaultSweepPageSize = 100

type sweepOptions struct {
	pageSize int
}

// SweepOption configures a sweep.
type SweepOption func(*sweepOptions)

// WithPageSize sets the number of candidates fetched per query.
func WithPageSize(n int) SweepOption {
	return func(o *sweepOptions) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// Sweep removes the sessions that have not been active for the retention
// period. A session saved after it was found is kept and not reported. With
// dryRun nothing is removed and the result lists what would have been.
//
// If the storage fails midway, the result of the work done so far is
// returned with the error.
func Sweep(
	ctx context.Context,
	be *backend.Backend,
	retention gotime.Duration,
	dryRun bool,
	opts ...SweepOption,
) (*types.SweepResult, error) {
	o := &sweepOptions{pageSize: DefaultSweepPageSize}
	for _, opt := range opts {
		opt(o)
	}

	start := be.Clock.Now()
	before := start.Add(-retention)
	result := &types.SweepResult{Keys: []string{}, Sessions: []types.SweptSession{}, DryRun: dryRun}
	skipped := 0

	afterKey := ""
	for {
		if err := ctx.Err(); err != nil {
			return finishSweep(ctx, be, result, skipped, start), err
		}

		candidates, err := be.DB.FindStaleSessionInfos(ctx, before, afterKey, o.pageSize)
		if err != nil {
			return finishSweep(ctx, be, result, skipped, start), fmt.Errorf("find stale sessions: %w", err)
		}

		for _, info := range candidates {
			afterKey = info.Key

			if dryRun {
				addSwept(result, info)
				continue
			}

			deleted, err := deleteIfStale(ctx, be, info.Key, before)
			if err != nil {
				return finishSweep(ctx, be, result, skipped, start), err
			}
			if !deleted {
				skipped++
				continue
			}

			addSwept(result, info)
		}

		if len(candidates) < o.pageSize {
			break
		}
	}

	return finishSweep(ctx, be, result, skipped, start), nil
}

func addSwept(result *types.SweepResult, info *database.SessionInfo) {
	result.Keys = append(result.Keys, info.Key)
	result.Sessions = append(result.Sessions, types.SweptSession{
		Key:          info.Key,
		SizeBytes:    info.TotalSizeBytes,
		LastActiveAt: info.ActiveAt(),
	})
	result.BytesFreed += info.TotalSizeBytes
}

func deleteIfStale(
	ctx context.Context,
	be *backend.Backend,
	key string,
	before gotime.Time,
) (bool, error) {
	locker := be.Lockers.Locker(sync.SessionKey(key))
	if err := locker.Lock(ctx); err != nil {
		return false, fmt.Errorf("lock session %s: %w", key, err)
	}
	defer func() {
		if err := locker.Unlock(); err != nil {
			logging.From(ctx).Error(err)
		}
	}()

	deleted, err := be.DB.DeleteSessionInfoIfStale(ctx, key, before)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", key, err)
	}
	be.Cache.Session.Remove(key)

	return deleted, nil
}

func finishSweep(
	ctx context.Context,
	be *backend.Backend,
	result *types.SweepResult,
	skipped int,
	start gotime.Time,
) *types.SweepResult {
	result.DeletedCount = len(result.Keys)
	be.Metrics.AddSweep(result.DryRun, result.DeletedCount, result.BytesFreed, skipped)

	if result.DeletedCount > 0 || skipped > 0 {
		verb := "deleted"
		if result.DryRun {
			verb = "would delete"
		}
		logging.From(ctx).Infof(
			"HSKP: sweep %s %d sessions, %d bytes, skipped %d, %s",
			verb,
			result.DeletedCount,
			result.BytesFreed,
			skipped,
			be.Clock.Since(start),
		)
	}

	return result
}
