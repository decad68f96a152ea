package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is an in-process token bucket keyed by caller-supplied strings,
// typically one bucket per user. Buckets are created lazily at full capacity.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket), now: time.Now}
}

// NewWithClock builds a limiter with a custom time source.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{m: make(map[string]*bucket), now: now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key, capacity, refillPerSec, now)
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}

// Peek reports the whole tokens currently available for key without
// consuming any.
func (l *Limiter) Peek(key string, capacity, refillPerSec float64) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key, capacity, refillPerSec, now)
	return int(b.tokens)
}

func (l *Limiter) refill(key string, capacity, refillPerSec float64, now time.Time) *bucket {
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
		return b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	return b
}
