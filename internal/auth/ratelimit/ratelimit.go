// Package ratelimit is an in-memory sliding-window limiter keyed by caller
// identity.
package ratelimit

import (
	"sync"
	"time"
)

// entry holds the admission times of one key that are still inside the
// window, oldest first.
type entry struct {
	hits []time.Time
}

// prune drops hits that fell out of the window ending at now.
func (e *entry) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(e.hits) && now.Sub(e.hits[i]) >= window {
		i++
	}
	if i > 0 {
		e.hits = append(e.hits[:0], e.hits[i:]...)
	}
}

func (e *entry) last() time.Time {
	if len(e.hits) == 0 {
		return time.Time{}
	}
	return e.hits[len(e.hits)-1]
}

// Limiter admits at most limit requests per key in any trailing window.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing limit requests per window per key. Close
// stops the background cleanup.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.cleanup(5 * time.Minute)
	return l
}

// Allow records a request for key and reports whether it is admitted.
// Rejected requests do not count against the window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.entries[key]
	if !exists {
		e = &entry{hits: make([]time.Time, 0, l.limit)}
		l.entries[key] = e
	}
	e.prune(now, l.window)
	if len(e.hits) >= l.limit {
		return false
	}
	e.hits = append(e.hits, now)
	return true
}

// Reset clears the rate-limit state for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

// cleanup drops keys that have not been admitted for a while.
func (l *Limiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-(l.window + time.Minute))
	for key, e := range l.entries {
		if e.last().Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
