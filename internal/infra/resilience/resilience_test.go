package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
	"go.uber.org/zap"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// third acquire blocks until the context expires
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestRetryWithBackoff_ZeroRetriesRunsOnce(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), resilience.Config{}, func() error {
		callCount++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return resilience.Permanent(errors.New("bad request"))
	})

	if !resilience.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestCall_WriteIsNotRetried(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-write", zap.NewNop())
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	callCount := 0
	_, err := resilience.Call(context.Background(), cb, cfg, false, func() (string, error) {
		callCount++
		return "", errors.New("upstream down")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestCall_ReadIsRetried(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-read", zap.NewNop())
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

	callCount := 0
	got, err := resilience.Call(context.Background(), cb, cfg, true, func() (string, error) {
		callCount++
		if callCount < 2 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
}

func TestCall_OpenBreaker(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-open", zap.NewNop())
	cfg := resilience.Config{}

	for i := 0; i < 5; i++ {
		_, _ = resilience.Call(context.Background(), cb, cfg, false, func() (int, error) {
			return 0, errors.New("down")
		})
	}

	_, err := resilience.Call(context.Background(), cb, cfg, false, func() (int, error) {
		t.Fatal("fn must not run while the breaker is open")
		return 0, nil
	})

	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if open.Service != "test-open" {
		t.Errorf("expected service test-open, got %s", open.Service)
	}
}

func TestCall_PermanentErrorDoesNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-permanent", zap.NewNop())

	notFound := &domain.ErrNotFound{Resource: "customer", ID: "x"}
	for i := 0; i < 10; i++ {
		_, err := resilience.Call(context.Background(), cb, resilience.Config{}, false, func() (int, error) {
			return 0, resilience.Permanent(notFound)
		})
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			t.Fatalf("iteration %d: expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	l := resilience.NewLimiter(0)
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestLimiter_HonoursContext(t *testing.T) {
	l := resilience.NewLimiter(0.001)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first token should be available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected the second wait to fail")
	}
}
