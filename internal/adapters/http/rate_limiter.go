package http

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by client address, with an
// overall ceiling across all clients.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	overall  []time.Time
	limit    int
	maxTotal int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit, maxTotal int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		maxTotal: maxTotal,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	rl.overall = fresh(rl.overall, windowStart)
	if rl.maxTotal > 0 && len(rl.overall) >= rl.maxTotal {
		return false
	}

	attempts := fresh(rl.history[client], windowStart)
	if len(attempts) >= rl.limit {
		rl.history[client] = attempts
		return false
	}

	rl.history[client] = append(attempts, now)
	rl.overall = append(rl.overall, now)
	return true
}

// Prune forgets clients idle for longer than four windows.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-4 * rl.interval)
	n := 0
	for client, attempts := range rl.history {
		if len(attempts) == 0 || attempts[len(attempts)-1].Before(cutoff) {
			delete(rl.history, client)
			n++
		}
	}
	return n
}

func fresh(attempts []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(attempts) && !attempts[i].After(windowStart) {
		i++
	}
	return attempts[i:]
}
