package notifier

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SlidingWindowLimiter caps sends inside a sliding time window, blocking
// callers until a slot frees instead of rejecting them. Sends here are
// infrequent, so blocking is safe and keeps callers simple.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	sent   []time.Time

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSlidingWindowLimiter creates a limiter allowing at most limit sends
// per window.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		window: window,
		limit:  limit,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until a send slot is free or ctx is done. On success the
// slot is recorded immediately.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		if len(l.sent) < l.limit {
			l.sent = append(l.sent, now)
			l.mu.Unlock()
			return nil
		}

		// Sleep until the oldest recorded send leaves the window.
		wait := l.sent[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops send records older than the window. Callers hold l.mu.
func (l *SlidingWindowLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.sent) && !l.sent[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.sent = append(l.sent[:0], l.sent[idx:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer spaces individual requests with a token bucket, independent of the
// sliding window cap. The messaging API throttles bursts per destination
// even when the per-minute budget has room.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a Pacer sustaining requestsPerSecond with the given
// burst capacity.
func NewPacer(requestsPerSecond float64, burst int) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until the next request may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
