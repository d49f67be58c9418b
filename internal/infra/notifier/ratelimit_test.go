package notifier

import (
	"context"
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*SlidingWindowLimiter, *time.Time, *[]time.Duration) {
	l := NewSlidingWindowLimiter(limit, window)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}
	return l, &now, &slept
}

func TestSlidingWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l, _, slept := newTestLimiter(3, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i+1, err)
		}
	}
	if len(*slept) != 0 {
		t.Errorf("no sleeping expected under the limit, slept %v", *slept)
	}
}

func TestSlidingWindowLimiter_BlocksAtLimit(t *testing.T) {
	l, _, slept := newTestLimiter(2, time.Minute)

	ctx := context.Background()
	_ = l.Acquire(ctx)
	_ = l.Acquire(ctx)

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("blocked acquire should eventually succeed: %v", err)
	}
	if len(*slept) == 0 {
		t.Fatal("expected the third acquire to sleep")
	}
	if (*slept)[0] != time.Minute {
		t.Errorf("expected to sleep a full window, slept %v", (*slept)[0])
	}
}

func TestSlidingWindowLimiter_WindowSlides(t *testing.T) {
	l, now, slept := newTestLimiter(2, time.Minute)

	ctx := context.Background()
	_ = l.Acquire(ctx)

	*now = now.Add(40 * time.Second)
	_ = l.Acquire(ctx)

	// The first slot frees after 20 more seconds, not a full minute.
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 20*time.Second {
		t.Errorf("expected a single 20s sleep, got %v", *slept)
	}
}

func TestSlidingWindowLimiter_ContextCancellation(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected context error from blocked acquire")
	}
}
