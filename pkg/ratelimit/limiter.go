// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrent is the default ceiling of in-flight remote calls.
	DefaultMaxConcurrent = 10

	// DefaultQuota is the default number of calls admitted per window.
	DefaultQuota = 5000

	// DefaultWindow is the default length of the quota window.
	DefaultWindow = 3600 * time.Second
)

// Config configures a Limiter.
type Config struct {
	MaxConcurrent int
	Quota         int
	Window        time.Duration
}

// DefaultConfig returns the limits of an authenticated API token.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		Quota:         DefaultQuota,
		Window:        DefaultWindow,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Quota <= 0 {
		c.Quota = DefaultQuota
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// State is a point-in-time snapshot of the limiter.
type State struct {
	InFlight         int
	Available        int
	WindowStart      time.Time
	RequestsInWindow int
	Waits            int64
}

// Limiter enforces a concurrency ceiling and a rolling request quota.
// It is safe for concurrent use.
type Limiter struct {
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu          sync.Mutex
	windowStart time.Time
	inWindow    int

	inFlight atomic.Int64
	waits    atomic.Int64

	// swapped in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	l := &Limiter{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
	l.windowStart = l.now()
	return l
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Permit is a unit of concurrency capacity. Release returns it to the limiter;
// calling Release more than once is a no-op.
type Permit struct {
	l    *Limiter
	once sync.Once
}

// Release returns the permit.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.l.inFlight.Add(-1)
		p.l.sem.Release(1)
	})
}

// Acquire blocks until a concurrency permit is free and the current window
// has room for one more request. The returned permit stays held until Release.
// The only error is the context's.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	l.inFlight.Add(1)
	p := &Permit{l: l}

	if err := l.admit(ctx); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// Do runs fn while holding a permit. The permit is released when fn returns,
// including on panic.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}

// admit charges one request against the window, sleeping through the window
// boundary when the quota is exhausted. mu is never held while sleeping.
func (l *Limiter) admit(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		elapsed := now.Sub(l.windowStart)
		if elapsed >= l.cfg.Window {
			l.windowStart = now
			l.inWindow = 0
			elapsed = 0
		}
		if l.inWindow < l.cfg.Quota {
			l.inWindow++
			l.mu.Unlock()
			return nil
		}
		wait := l.cfg.Window - elapsed
		l.mu.Unlock()

		l.waits.Add(1)
		recordWait(wait)
		l.logger.Info("ratelimit.window.full",
			"quota", l.cfg.Quota,
			"window", l.cfg.Window,
			"wait", wait,
		)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// State returns a snapshot of the limiter counters.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	inFlight := int(l.inFlight.Load())
	return State{
		InFlight:         inFlight,
		Available:        l.cfg.MaxConcurrent - inFlight,
		WindowStart:      l.windowStart,
		RequestsInWindow: l.inWindow,
		Waits:            l.waits.Load(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
