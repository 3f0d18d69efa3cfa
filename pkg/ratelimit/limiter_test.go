package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFixedDelay(t *testing.T) {
	fd := NewFixedDelay(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := fd.Wait(ctx); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Expected first wait to return immediately, took %s", elapsed)
	}

	start = time.Now()
	if err := fd.Wait(ctx); err != nil {
		t.Fatalf("Second wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected second wait to pause at least 50ms, took %s", elapsed)
	}

	fd.Reset()
	start = time.Now()
	_ = fd.Wait(ctx)
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Expected wait after reset to return immediately, took %s", elapsed)
	}
}

func TestFixedDelayCancelled(t *testing.T) {
	fd := NewFixedDelay(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	_ = fd.Wait(ctx)
	cancel()

	err := fd.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)
	now := time.Unix(1000, 0)
	sw.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}

	now = now.Add(time.Second + 100*time.Millisecond)
	if !sw.Allow() {
		t.Error("Expected request to be allowed after window slides")
	}

	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sw.Wait(ctx); err != nil {
		t.Fatalf("First wait should pass: %v", err)
	}
	if err := sw.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		delay     time.Duration
		rpm       int
		wantCount int
	}{
		{"no pacing", 0, 0, 0},
		{"delay only", time.Second, 0, 1},
		{"window only", 0, 60, 1},
		{"both", time.Second, 60, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.delay, tt.rpm)
			c, ok := l.(chain)
			if !ok {
				t.Fatalf("Expected chain, got %T", l)
			}
			if len(c) != tt.wantCount {
				t.Errorf("Expected %d limiters, got %d", tt.wantCount, len(c))
			}
		})
	}
}

func TestEmptyChainDoesNotBlock(t *testing.T) {
	l := Chain()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	l.Reset()
}
