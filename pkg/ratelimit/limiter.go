package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Wait blocks until the next request may be sent or ctx is done
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// New builds the limiter for a collection run: a fixed pause between
// requests, optionally capped at requestsPerMinute.
func New(pageDelay time.Duration, requestsPerMinute int) Limiter {
	var limiters []Limiter
	if pageDelay > 0 {
		limiters = append(limiters, NewFixedDelay(pageDelay))
	}
	if requestsPerMinute > 0 {
		limiters = append(limiters, NewSlidingWindow(requestsPerMinute, time.Minute))
	}
	return Chain(limiters...)
}

// FixedDelay pauses for a fixed interval before every request except the first
type FixedDelay struct {
	interval time.Duration
	started  bool
	mu       sync.Mutex
}

// NewFixedDelay creates a FixedDelay limiter
func NewFixedDelay(interval time.Duration) *FixedDelay {
	return &FixedDelay{interval: interval}
}

// Wait sleeps for the interval unless this is the first request
func (fd *FixedDelay) Wait(ctx context.Context) error {
	fd.mu.Lock()
	first := !fd.started
	fd.started = true
	fd.mu.Unlock()

	if first {
		return ctx.Err()
	}
	return sleep(ctx, fd.interval)
}

// Reset makes the next Wait return immediately again
func (fd *FixedDelay) Reset() {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.started = false
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow records a request and reports whether it fits in the window
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		sw.mu.Lock()
		timeToWait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if d := sw.windowSize - sw.now().Sub(sw.requests[0]); d > 0 {
				timeToWait = d
			}
		}
		sw.mu.Unlock()

		if err := sleep(ctx, timeToWait); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

type chain []Limiter

// Chain waits on each limiter in order. An empty chain never blocks.
func Chain(limiters ...Limiter) Limiter {
	return chain(limiters)
}

func (c chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (c chain) Reset() {
	for _, l := range c {
		l.Reset()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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
