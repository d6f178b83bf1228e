package ingress

import (
	"sync"

	"golang.org/x/time/rate"
)

// HookRateLimiter bounds how often the hook chain may invoke any single
// hook-owning pack, keyed by pack_id. A stuck component stalls one worker
// thread and nothing else, but repeated invocations of the same runaway
// hook across many requests should still be bounded.
type HookRateLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHookRateLimiter returns a limiter allowing rps invocations/sec per
// pack_id, with the given burst. rps<=0 disables limiting entirely.
func NewHookRateLimiter(rps float64, burst int) *HookRateLimiter {
	return &HookRateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a hook invocation for packID may proceed right
// now. A nil receiver (no limiter configured) always allows.
func (l *HookRateLimiter) Allow(packID string) bool {
	if l == nil || l.rps <= 0 {
		return true
	}
	return l.limiterFor(packID).Allow()
}

func (l *HookRateLimiter) limiterFor(packID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[packID]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[packID] = lim
	}
	return lim
}
