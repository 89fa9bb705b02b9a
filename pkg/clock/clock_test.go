package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollUntilSucceedsEarly(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	calls := 0
	res := PollUntil(context.Background(), c, 500*time.Millisecond, 20, func() bool {
		calls++
		return calls == 3
	})
	if !res.OK {
		t.Fatalf("expected OK")
	}
	if res.Polls != 2 {
		t.Fatalf("expected 2 polls, got %d", res.Polls)
	}
	if c.Slept() != time.Second {
		t.Fatalf("expected 1s slept, got %s", c.Slept())
	}
}

func TestPollUntilExhaustsBudget(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	res := PollUntil(context.Background(), c, 500*time.Millisecond, 20, func() bool { return false })
	if res.OK || res.Err != nil {
		t.Fatalf("expected plain timeout, got %+v", res)
	}
	if res.Polls != 20 {
		t.Fatalf("expected 20 polls, got %d", res.Polls)
	}
	if c.Slept() != 10*time.Second {
		t.Fatalf("expected 10s budget, got %s", c.Slept())
	}
}

func TestPollUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := PollUntil(ctx, NewFake(time.Unix(0, 0)), time.Second, 5, func() bool { return false })
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
}

func TestRealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Real{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
