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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the limiter sleeps.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cfg, nil)
	l.now = clock.now
	l.sleep = clock.sleep
	l.windowStart = clock.now()
	return l, clock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxConcurrent)
	assert.Equal(t, 5000, cfg.Quota)
	assert.Equal(t, time.Hour, cfg.Window)

	l := New(Config{}, nil)
	assert.Equal(t, cfg, l.Config())
}

func TestLimiter_ConcurrencyCeiling(t *testing.T) {
	const ceiling = 3
	l := New(Config{MaxConcurrent: ceiling, Quota: 1000, Window: time.Hour}, nil)

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func(context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(ceiling))
	assert.Equal(t, int64(0), active.Load())

	st := l.State()
	assert.Equal(t, 0, st.InFlight)
	assert.Equal(t, ceiling, st.Available)
	assert.Equal(t, 20, st.RequestsInWindow)
}

func TestLimiter_PermitHeldUntilRelease(t *testing.T) {
	l := New(Config{MaxConcurrent: 1, Quota: 10, Window: time.Hour}, nil)

	p, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, l.State().Available)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second acquire must block while the permit is held")

	p.Release()
	p.Release() // idempotent
	assert.Equal(t, 1, l.State().Available)

	p2, err := l.Acquire(context.Background())
	require.NoError(t, err)
	p2.Release()
}

func TestLimiter_QuotaForcesWait(t *testing.T) {
	l, clock := newTestLimiter(Config{MaxConcurrent: 5, Quota: 2, Window: time.Minute})

	clock.advance(10 * time.Second)
	for i := 0; i < 2; i++ {
		p, err := l.Acquire(context.Background())
		require.NoError(t, err)
		p.Release()
	}
	assert.Empty(t, clock.slept)

	p, err := l.Acquire(context.Background())
	require.NoError(t, err)
	p.Release()

	require.Len(t, clock.slept, 1, "third request must wait for the window to roll over")
	assert.Equal(t, 50*time.Second, clock.slept[0])

	st := l.State()
	assert.Equal(t, 1, st.RequestsInWindow)
	assert.Equal(t, clock.now(), st.WindowStart)
	assert.Equal(t, int64(1), st.Waits)
}

func TestLimiter_WindowResetsAfterElapsed(t *testing.T) {
	l, clock := newTestLimiter(Config{MaxConcurrent: 1, Quota: 1, Window: time.Minute})

	p, err := l.Acquire(context.Background())
	require.NoError(t, err)
	p.Release()

	clock.advance(2 * time.Minute)
	p, err = l.Acquire(context.Background())
	require.NoError(t, err)
	p.Release()

	assert.Empty(t, clock.slept, "an elapsed window resets without waiting")
	assert.Equal(t, 1, l.State().RequestsInWindow)
}

func TestLimiter_CancelledWhileWaitingReleasesPermit(t *testing.T) {
	l := New(Config{MaxConcurrent: 1, Quota: 1, Window: time.Hour}, nil)

	p, err := l.Acquire(context.Background())
	require.NoError(t, err)
	p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx)
		errc <- err
	}()

	// The second caller holds the only permit while it sleeps out the window.
	require.Eventually(t, func() bool { return l.State().Waits == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, l.State().InFlight)
	assert.Equal(t, 0, l.State().Available)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}

	st := l.State()
	assert.Equal(t, 0, st.InFlight)
	assert.Equal(t, l.Config().MaxConcurrent, st.Available)
	assert.Equal(t, 1, st.RequestsInWindow, "the cancelled caller was never charged")
}

func TestLimiter_CancelledBeforeAcquire(t *testing.T) {
	l := New(Config{MaxConcurrent: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.State().Available)
	assert.Equal(t, 0, l.State().RequestsInWindow)
}

func TestLimiter_DoReleasesOnError(t *testing.T) {
	l := New(Config{MaxConcurrent: 1}, nil)
	sentinel := assert.AnError

	err := l.Do(context.Background(), func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, l.State().Available)
}
