package blog

import (
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps a token bucket per client address
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
	lastGC   time.Time
	onLimit  func(ip string)
}

// RateLimiterOption configures an IPRateLimiter
type RateLimiterOption func(*IPRateLimiter)

// WithRateLimiterClock overrides the time source
func WithRateLimiterClock(now func() time.Time) RateLimiterOption {
	return func(l *IPRateLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithOnLimit is called every time a request is rejected
func WithOnLimit(fn func(ip string)) RateLimiterOption {
	return func(l *IPRateLimiter) {
		l.onLimit = fn
	}
}

// NewIPRateLimiter allows perSecond events per address with the given burst
func NewIPRateLimiter(perSecond float64, burst int, opts ...RateLimiterOption) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}

	l := &IPRateLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	l.lastGC = l.now()
	return l
}

// Allow reports whether the address may proceed now
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gc(now)

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// gc drops idle buckets, caller holds mu
func (l *IPRateLimiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < limiterIdleTTL {
		return
	}
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= limiterIdleTTL {
			delete(l.limiters, ip)
		}
	}
	l.lastGC = now
}

// Middleware rejects requests over the limit with ErrTooManyRequests
func (l *IPRateLimiter) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			ip := ctx.IP()
			if !l.Allow(ip) {
				if l.onLimit != nil {
					l.onLimit(ip)
				}
				return ErrTooManyRequests
			}
			return ctx.Next()
		}
	}
}
