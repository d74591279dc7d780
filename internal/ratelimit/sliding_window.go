package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit  = 20
	DefaultWindow = time.Minute
)

// SlidingWindow accepts at most limit calls within any trailing window.
// Accepted call times live in a ring buffer of size limit, so memory stays
// bounded however often Allow is called.
type SlidingWindow struct {
	mu sync.Mutex

	limit  int
	window time.Duration

	stamps []time.Time
	head   int // index of the oldest timestamp
	count  int
}

// NewSlidingWindow creates a limiter. Non-positive arguments fall back to the defaults.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		stamps: make([]time.Time, limit),
	}
}

// Allow records a call at now and reports whether it is within the limit.
// A rejected call is not recorded.
func (w *SlidingWindow) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if w.count >= w.limit {
		return false
	}

	w.stamps[(w.head+w.count)%w.limit] = now
	w.count++
	return true
}

// Remaining returns how many calls would be accepted at now.
func (w *SlidingWindow) Remaining(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return w.limit - w.count
}

// RetryAfter returns how long until a call would be accepted, 0 if one would be now.
// The oldest call stops counting once it is strictly older than the window.
func (w *SlidingWindow) RetryAfter(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if w.count < w.limit {
		return 0
	}
	return w.stamps[w.head].Add(w.window).Sub(now) + time.Nanosecond
}

// Limit returns the maximum number of calls per window.
func (w *SlidingWindow) Limit() int {
	return w.limit
}

// Window returns the length of the sliding window.
func (w *SlidingWindow) Window() time.Duration {
	return w.window
}

// prune drops timestamps older than now-window. A call exactly window old
// still counts. Callers must hold w.mu.
func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	for w.count > 0 && w.stamps[w.head].Before(cutoff) {
		w.stamps[w.head] = time.Time{}
		w.head = (w.head + 1) % w.limit
		w.count--
	}
}
