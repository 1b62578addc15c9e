package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipeline_SucceedsFirstTry(t *testing.T) {
	p := New(Config{MaxRetries: 3, CircuitBreakerFailureThreshold: 3, CircuitBreakerRecoveryTimeout: time.Second})

	calls := 0
	transient, err := p.Run(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if err != nil || transient {
		t.Fatalf("expected success, got transient=%v err=%v", transient, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPipeline_RetriesRetryableFailures(t *testing.T) {
	p := New(Config{MaxRetries: 3, CircuitBreakerFailureThreshold: 10, CircuitBreakerRecoveryTimeout: time.Second})

	calls := 0
	_, err := p.Run(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient failure")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPipeline_DoesNotRetryNonRetryable(t *testing.T) {
	p := New(Config{MaxRetries: 3, CircuitBreakerFailureThreshold: 10, CircuitBreakerRecoveryTimeout: time.Second})

	calls := 0
	_, err := p.Run(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, errors.New("permanent failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a non-retryable failure, got %d", calls)
	}
}

func TestPipeline_OpensBreakerAfterThreshold(t *testing.T) {
	p := New(Config{MaxRetries: 1, CircuitBreakerFailureThreshold: 2, CircuitBreakerRecoveryTimeout: time.Hour})

	fail := func(ctx context.Context) (bool, error) { return true, errors.New("boom") }

	p.Run(context.Background(), fail)
	p.Run(context.Background(), fail)

	calls := 0
	transient, err := p.Run(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrBreakerOpen) || !transient {
		t.Fatalf("expected breaker-open error, got transient=%v err=%v", transient, err)
	}
	if calls != 0 {
		t.Error("expected no outbound call while breaker is open")
	}
}

func TestPipeline_HalfOpenRecovers(t *testing.T) {
	p := New(Config{MaxRetries: 1, CircuitBreakerFailureThreshold: 1, CircuitBreakerRecoveryTimeout: 10 * time.Millisecond})

	p.Run(context.Background(), func(ctx context.Context) (bool, error) { return true, errors.New("boom") })

	time.Sleep(20 * time.Millisecond)

	_, err := p.Run(context.Background(), func(ctx context.Context) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("expected half-open trial to succeed and close breaker, got %v", err)
	}

	_, err = p.Run(context.Background(), func(ctx context.Context) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("expected breaker closed after successful trial, got %v", err)
	}
}
