package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvelkov/subtrans/internal/translate"
)

func fastRetryer(maxAttempts int) *Retryer {
	return &Retryer{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		sleep: func(ctx context.Context, d time.Duration) error {
			return ctx.Err()
		},
	}
}

func TestRetryer_FirstAttemptSucceeds(t *testing.T) {
	r := fastRetryer(3)
	calls := 0
	out, err := r.Attempt(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected %q, got %q", "ok", out)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryer_TransientFailureRetriedExactlyThreeTimes(t *testing.T) {
	r := fastRetryer(3)
	calls := 0
	_, err := r.Attempt(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &translate.APIError{Kind: translate.KindServer, Status: 500, Message: "boom"}
	})
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestRetryer_RecoversOnThirdAttempt(t *testing.T) {
	r := fastRetryer(3)
	calls := 0
	out, err := r.Attempt(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &translate.APIError{Kind: translate.KindServer, Status: 502, Message: "bad gateway"}
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "done" || calls != 3 {
		t.Errorf("expected success on attempt 3, got %q after %d calls", out, calls)
	}
}

func TestRetryer_AuthShortCircuits(t *testing.T) {
	r := fastRetryer(3)
	calls := 0
	_, err := r.Attempt(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &translate.APIError{Kind: translate.KindAuth, Status: 401, Message: "bad key"}
	})
	if !translate.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retries after auth failure, got %d attempts", calls)
	}
}

func TestRetryer_ContextCancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Retryer{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	calls := 0
	_, err := r.Attempt(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "", &translate.APIError{Kind: translate.KindNetwork, Message: "down"}
	})
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
	var apiErr *translate.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("expected the last attempt's error, got %v", err)
	}
}

func TestRetryer_BackoffCapped(t *testing.T) {
	r := &Retryer{BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	for attempt := range 10 {
		d := r.Backoff(attempt)
		// Cap plus up to half jitter.
		if d > 6*time.Second {
			t.Errorf("attempt %d: backoff %v exceeds cap with jitter", attempt, d)
		}
		if d <= 0 {
			t.Errorf("attempt %d: non-positive backoff %v", attempt, d)
		}
	}
}
