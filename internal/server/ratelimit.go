package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/bookrec-go/internal/logging"
)

// Per-IP limits applied to POST /search when none are configured.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

const (
	// limiterIdleTTL is how long an IP may stay silent before its bucket is dropped.
	limiterIdleTTL = 5 * time.Minute
	// evictInterval is how often idle buckets are swept.
	evictInterval = time.Minute
)

// msgRateLimited is the client-facing body of a 429.
const msgRateLimited = "Too many searches. Please wait a moment and try again."

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles searches with one token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter

	rps   rate.Limit
	burst int
	// retryAfter is the Retry-After value sent with a 429: the time for one
	// token to refill, in whole seconds.
	retryAfter string
	// onReject is called for every rejected request. May be nil.
	onReject func()
}

// newRateLimiter constructs a rateLimiter and starts its eviction goroutine.
// The returned stop function ends the goroutine and may be called more than
// once.
func newRateLimiter(rps float64, burst int, onReject func()) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters:   make(map[string]*ipLimiter),
		rps:        rate.Limit(rps),
		burst:      burst,
		retryAfter: strconv.Itoa(retryAfterSeconds(rps)),
		onReject:   onReject,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	var once sync.Once
	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// retryAfterSeconds is ceil(1/rps), at least 1.
func retryAfterSeconds(rps float64) int {
	if rps <= 0 {
		return 1
	}
	secs := math.Ceil(1 / rps)
	if secs < 1 || secs > math.MaxInt32 {
		return 1
	}
	return int(secs)
}

func (rl *rateLimiter) getLimiter(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// evict drops buckets not seen within limiterIdleTTL of now.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-limiterIdleTTL)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// middleware rejects requests over the caller's budget with 429, a
// Retry-After header, and a JSON error body.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if rl.getLimiter(ip, time.Now()).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		logging.FromContext(r.Context()).Warn("search rate limit exceeded",
			slog.String("ip", ip),
			slog.String("retry_after", rl.retryAfter),
		)
		if rl.onReject != nil {
			rl.onReject()
		}
		w.Header().Set("Retry-After", rl.retryAfter)
		writeError(w, r, http.StatusTooManyRequests, msgRateLimited)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
