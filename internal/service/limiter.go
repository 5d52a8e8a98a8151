package service

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles repeated attempts per identifying key over a rolling window.
type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, resetAt time.Time)
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*MemoryLimiter)(nil)
)

const memoryLimiterCleanupPeriod = 5 * time.Minute

// MemoryLimiter is a process-local sliding window limiter used when no
// Redis instance is configured.
type MemoryLimiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	lastCleanup time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		attempts:    make(map[string][]time.Time),
		lastCleanup: time.Now(),
	}
}

func (l *MemoryLimiter) cleanup(window time.Duration) {
	now := time.Now()
	if now.Sub(l.lastCleanup) < memoryLimiterCleanupPeriod {
		return
	}
	l.lastCleanup = now

	for key, stamps := range l.attempts {
		if len(stamps) == 0 || now.Sub(stamps[len(stamps)-1]) > window {
			delete(l.attempts, key)
		}
	}
}

func (l *MemoryLimiter) CheckLimit(_ context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(window)

	now := time.Now()
	windowStart := now.Add(-window)

	kept := l.attempts[key][:0]
	for _, stamp := range l.attempts[key] {
		if stamp.After(windowStart) {
			kept = append(kept, stamp)
		}
	}

	if len(kept) >= limit {
		l.attempts[key] = kept
		return false, kept[0].Add(window)
	}

	l.attempts[key] = append(kept, now)
	return true, now.Add(window)
}
