package robustness

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	failing := errors.New("server unreachable")

	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func() error { return failing }); !errors.Is(err, failing) {
			t.Fatalf("call %d: err = %v, want the underlying failure", i, err)
		}
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen once the threshold is hit", err)
	}
}

func TestCircuitBreaker_ClosesAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	failing := errors.New("server unreachable")

	if err := cb.Execute(context.Background(), func() error { return failing }); !errors.Is(err, failing) {
		t.Fatalf("err = %v, want the underlying failure", err)
	}
	if err := cb.Execute(context.Background(), func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen immediately after tripping", err)
	}

	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("err = %v, want the probe call after resetTimeout to succeed", err)
	}

	if err := cb.Execute(context.Background(), func() error { return failing }); !errors.Is(err, failing) {
		t.Fatalf("err = %v, want the breaker closed after one success", err)
	}
}
