// Package ratelimit implements the per-client token bucket of spec
// §4.F. Kept on the standard library deliberately: golang.org/x/time/rate
// models one fixed limiter, not a map keyed by an ever-changing client
// ID with explicit removal on disconnect, and no example repo in the
// corpus wires it to that shape either (see DESIGN.md).
package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks one client's remaining tokens and the last time they
// were topped up.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a per-client token bucket rate limiter. The zero value is
// not usable; construct with New.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	refill   time.Duration // time to accrue one token
}

// New builds a Limiter with capacity C tokens, refilling one token
// every refill duration (capped at C). Defaults per spec §4.F are
// C=100, refill=10ms.
func New(capacity int, refill time.Duration) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if refill <= 0 {
		refill = time.Millisecond
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		refill:   refill,
	}
}

// Default returns a Limiter configured with spec §4.F's defaults
// (C=100, R=10ms).
func Default() *Limiter {
	return New(100, 10*time.Millisecond)
}

// TryAcquire attempts to consume one token for clientID, lazily
// refilling based on elapsed wall time since the last call. Unknown
// clients start full.
func (l *Limiter) TryAcquire(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[clientID]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[clientID] = b
	} else {
		elapsed := now.Sub(b.lastRefill)
		if elapsed > 0 {
			accrued := float64(elapsed) / float64(l.refill)
			b.tokens = min(l.capacity, b.tokens+accrued)
			b.lastRefill = now
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Remove drops all bucket state for clientID, called on connection
// close (spec §5 Cancellation).
func (l *Limiter) Remove(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, clientID)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
