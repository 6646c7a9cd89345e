package textmate

import (
	"context"
	"time"
)

// DefaultIdleTimeout bounds how long an asap-priority compile may wait for
// the host to report an idle period before it proceeds unconditionally.
const DefaultIdleTimeout = 10 * time.Second

// IdleScheduler runs fn once the host environment is idle, bounded by
// timeout.  fn runs at most once, and not at all once ctx is done.
type IdleScheduler interface {
	ScheduleIdle(ctx context.Context, timeout time.Duration, fn func())
}

// TimeoutScheduler is the fallback for hosts that cannot report idleness:
// fn simply runs after Delay (or after timeout, if that is sooner).
type TimeoutScheduler struct {
	Delay time.Duration
}

func (s TimeoutScheduler) ScheduleIdle(ctx context.Context, timeout time.Duration, fn func()) {
	delay := s.Delay
	if delay <= 0 || delay > timeout {
		delay = timeout
	}
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			fn()
		}
	}()
}

// SignalScheduler runs fn when the host ticks its idle channel, falling
// back to the timeout when no idle period arrives in time.
type SignalScheduler struct {
	Idle <-chan struct{}
}

func (s SignalScheduler) ScheduleIdle(ctx context.Context, timeout time.Duration, fn func()) {
	go func() {
		select {
		case <-ctx.Done():
		case <-s.Idle:
			fn()
		case <-time.After(timeout):
			fn()
		}
	}()
}
