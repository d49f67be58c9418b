package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"relwatch/internal/domain/entity"
)

// fastPolicy retries everything with negligible delays, for exercising Do.
type fastPolicy struct {
	maxAttempts int
	retryable   func(error) bool
}

func (p fastPolicy) MaxAttempts() int { return p.maxAttempts }

func (p fastPolicy) ShouldRetry(err error, _ int) bool {
	if p.retryable == nil {
		return true
	}
	return p.retryable(err)
}

func (p fastPolicy) Delay(int, error) time.Duration { return time.Millisecond }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy{maxAttempts: 3}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_PropagatesLastErrorUnchanged(t *testing.T) {
	final := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), fastPolicy{maxAttempts: 3}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return final
	})
	if !errors.Is(err, final) {
		t.Fatalf("expected last error unchanged, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	policy := fastPolicy{
		maxAttempts: 5,
		retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}
	err := Do(context.Background(), policy, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancellationAbortsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	slow := fastPolicy{maxAttempts: 2}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, slowDelay{slow}, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

// slowDelay wraps a policy with a delay long enough to be interrupted.
type slowDelay struct{ fastPolicy }

func (slowDelay) Delay(int, error) time.Duration { return time.Minute }

func TestFetchPolicy_Classification(t *testing.T) {
	p := NewFetchPolicy()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &entity.FetchError{StatusCode: 503}, true},
		{"network failure", &entity.FetchError{StatusCode: 0, Message: "dial refused"}, true},
		{"client error", &entity.FetchError{StatusCode: 404}, false},
		{"raw 500", &HTTPError{StatusCode: 500}, true},
		{"context canceled", context.Canceled, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.ShouldRetry(tc.err, 1); got != tc.want {
				t.Errorf("ShouldRetry(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestFetchPolicy_Delay(t *testing.T) {
	p := NewFetchPolicy()

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 20 * time.Second}
	for i, w := range want {
		if got := p.Delay(i+1, nil); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestStoragePolicy(t *testing.T) {
	p := NewStoragePolicy()

	if p.MaxAttempts() != 2 {
		t.Errorf("expected 2 attempts, got %d", p.MaxAttempts())
	}
	if got := p.Delay(1, nil); got != 2*time.Second {
		t.Errorf("Delay(1) = %v, want 2s", got)
	}
	if !p.ShouldRetry(errors.New("any"), 1) {
		t.Error("storage policy should retry generic errors")
	}
	if p.ShouldRetry(context.DeadlineExceeded, 1) {
		t.Error("storage policy must not retry context errors")
	}
}

func TestNonePolicy(t *testing.T) {
	p := NewNonePolicy()

	calls := 0
	parseErr := &entity.ParseError{Message: "bad format"}
	err := Do(context.Background(), p, func() error {
		calls++
		return parseErr
	})
	if !errors.Is(err, parseErr) {
		t.Fatalf("expected parse error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}
