package api

import (
	"container/list"
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle  = 10 * time.Minute
	limiterSweep = time.Minute
)

type ipLimiter struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client IP. At most maxIPs buckets are
// tracked; the least recently used one is evicted when full.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	maxIPs int
	log    *slog.Logger

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
}

// NewRateLimiter creates a limiter. maxIPs <= 0 means 10000.
func NewRateLimiter(rps float64, burst, maxIPs int, logger *slog.Logger) *RateLimiter {
	if maxIPs <= 0 {
		maxIPs = 10000
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		rps:    rate.Limit(rps),
		burst:  burst,
		maxIPs: maxIPs,
		log:    logger,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Run drops idle buckets until ctx is cancelled.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *RateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for e := l.order.Back(); e != nil; {
		prev := e.Prev()
		lim := e.Value.(*ipLimiter)
		if now.Sub(lim.lastSeen) > limiterIdle {
			l.order.Remove(e)
			delete(l.items, lim.ip)
		}
		e = prev
	}
}

// Allow reports whether a request from ip may proceed.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if elem, ok := l.items[ip]; ok {
		l.order.MoveToFront(elem)
		lim := elem.Value.(*ipLimiter)
		lim.lastSeen = now
		return lim.limiter.Allow()
	}
	if l.order.Len() >= l.maxIPs {
		if back := l.order.Back(); back != nil {
			evicted := back.Value.(*ipLimiter)
			l.order.Remove(back)
			delete(l.items, evicted.ip)
			l.log.Debug("api: rate limiter evicted client", slog.String("ip", evicted.ip))
		}
	}
	lim := &ipLimiter{ip: ip, limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.items[ip] = l.order.PushFront(lim)
	return lim.limiter.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on chi's RealIP middleware upstream for proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
