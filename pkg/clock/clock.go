package clock

import (
	"context"
	"time"
)

// Clock is the time source for every blocking wait in the tracker.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollResult reports how a bounded poll ended.
type PollResult struct {
	OK    bool
	Polls int
	Err   error
}

// PollUntil evaluates cond, sleeping interval between evaluations, for at
// most maxPolls sleeps. It returns as soon as cond holds. A cancelled
// context ends the poll early with Err set.
func PollUntil(ctx context.Context, c Clock, interval time.Duration, maxPolls int, cond func() bool) PollResult {
	polls := 0
	for {
		if cond() {
			return PollResult{OK: true, Polls: polls}
		}
		if polls >= maxPolls {
			return PollResult{Polls: polls}
		}
		if err := c.Sleep(ctx, interval); err != nil {
			return PollResult{Polls: polls, Err: err}
		}
		polls++
	}
}
