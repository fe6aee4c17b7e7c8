// Package limit provides per-agent request rate limiting for the
// dispatcher using token buckets.
package limit

import (
	"sync"

	"golang.org/x/time/rate"
)

// AgentLimiter hands each caller identity its own token bucket.
// A zero or negative rate disables limiting entirely.
type AgentLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewAgentLimiter creates a limiter allowing rps requests per second
// with the given burst per agent. Burst values below 1 are raised to 1
// so a configured limiter never deadlocks a caller outright.
func NewAgentLimiter(rps float64, burst int) *AgentLimiter {
	if burst < 1 {
		burst = 1
	}
	return &AgentLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether the agent may proceed now. Unknown agents get
// a fresh bucket on first use.
func (l *AgentLimiter) Allow(agentID string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.limiters[agentID]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[agentID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
