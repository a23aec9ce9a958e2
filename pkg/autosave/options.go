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

package autosave

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/yorkie-team/tandem/api/types"
)

// Defaults of the saver.
const (
	DefaultDebounce     = 3 * time.Second
	DefaultInterval     = 30 * time.Second
	DefaultSavedDisplay = 2 * time.Second
	DefaultErrorDisplay = 3 * time.Second
	DefaultSaveTimeout  = 10 * time.Second
)

// StatusListener is called with every change of the status. err is set
// while the status is StatusError.
type StatusListener func(status Status, err *types.SaveError)

// Option configures Options.
type Option func(*Options)

// Options configures the saver.
type Options struct {
	// Clock is the source of timers, replaced in tests.
	Clock clock.Clock

	// Debounce is the quiet period after an edit before it is saved.
	Debounce time.Duration

	// Interval is the period of the background save.
	Interval time.Duration

	// SavedDisplay is how long StatusSaved is shown after a success.
	SavedDisplay time.Duration

	// ErrorDisplay is how long StatusError is shown after a failure.
	ErrorDisplay time.Duration

	// SaveTimeout bounds one call of the SaveFunc.
	SaveTimeout time.Duration

	// Baseline is the content already stored, for example the session read
	// when the editor opened. Channels equal to it are not saved again.
	Baseline []types.Channel

	// OnStatus is notified of status changes.
	OnStatus StatusListener

	// Logger is the Logger of the saver.
	Logger *zap.Logger
}

// WithClock configures the clock of the saver.
func WithClock(clk clock.Clock) Option {
	return func(o *Options) { o.Clock = clk }
}

// WithDebounce configures the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(o *Options) { o.Debounce = d }
}

// WithInterval configures the period of the background save.
func WithInterval(d time.Duration) Option {
	return func(o *Options) { o.Interval = d }
}

// WithSaveTimeout configures the timeout of one save.
func WithSaveTimeout(d time.Duration) Option {
	return func(o *Options) { o.SaveTimeout = d }
}

// WithBaseline configures the content that is already stored.
func WithBaseline(channels []types.Channel) Option {
	return func(o *Options) { o.Baseline = channels }
}

// WithStatusListener configures the listener of status changes.
func WithStatusListener(l StatusListener) Option {
	return func(o *Options) { o.OnStatus = l }
}

// WithLogger configures the Logger of the saver.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func newOptions(opts []Option) Options {
	o := Options{
		Clock:        clock.New(),
		Debounce:     DefaultDebounce,
		Interval:     DefaultInterval,
		SavedDisplay: DefaultSavedDisplay,
		ErrorDisplay: DefaultErrorDisplay,
		SaveTimeout:  DefaultSaveTimeout,
		Logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
