// Package ratelimit implements sliding-window admission control keyed by
// an arbitrary string (a client address, an endpoint token).
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most maxHits calls per key within a sliding window.
// Keys are never evicted: a quiet key's hit slice trims to empty but the
// map entry stays for the process lifetime, which is an accepted growth
// risk under high key cardinality.
type Limiter struct {
	maxHits int
	window  time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	// now is swappable in tests. time.Time carries a monotonic reading,
	// so window math is immune to wall-clock adjustment.
	now func() time.Time
}

func New(maxHits int, window time.Duration) *Limiter {
	return &Limiter{
		maxHits: maxHits,
		window:  window,
		hits:    make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether a call under key is admitted, recording it if so.
// Safe for concurrent use.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hits[key]
	// Hits are appended in order, so expiry is a prefix trim.
	drop := 0
	for drop < len(hits) && hits[drop].Before(cutoff) {
		drop++
	}
	if drop > 0 {
		hits = append(hits[:0], hits[drop:]...)
	}
	if len(hits) >= l.maxHits {
		l.hits[key] = hits
		return false
	}
	l.hits[key] = append(hits, now)
	return true
}
