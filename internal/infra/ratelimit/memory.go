package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"sealtrack/internal/domain"
)

var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// MemoryLimiter is a fixed-window counter keyed by caller. It is only
// accurate for a single replica.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count int
	ends  time.Time
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &MemoryLimiter{
		now:     cfg.Now,
		windows: make(map[string]*window),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, period time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.ends) {
		if !ok && len(m.windows) >= m.maxKeys {
			m.sweep(now)
			if len(m.windows) >= m.maxKeys {
				return domain.RateLimitDecision{}, ErrCapacityExceeded
			}
		}
		w = &window{ends: now.Add(period)}
		m.windows[key] = w
	}

	if w.count >= limit {
		return domain.RateLimitDecision{Limit: limit, ResetAt: w.ends}, nil
	}
	w.count++
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   w.ends,
	}, nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.ends) {
			delete(m.windows, key)
		}
	}
}
