package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/buildtrack/buildtrack-backend/internal/httputil"
)

// RateLimiter allows each caller `limit` requests per fixed `window`,
// starting at the caller's first request. Nothing is refilled inside a
// window. Callers are keyed by remote IP; put chi's RealIP in front of it
// when running behind a proxy.
type RateLimiter struct {
	limit   int
	window  time.Duration
	message string
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

// visitor holds one caller's window. The limiter has a zero rate, so its
// burst is the number of requests left until windowStart+window.
type visitor struct {
	limiter     *rate.Limiter
	windowStart time.Time
}

func NewRateLimiter(limit int, window time.Duration, message string) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		message:  message,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether key may make another request now. When it may not,
// the returned duration is how long until the caller's window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.collect(now)

	v, ok := rl.visitors[key]
	if !ok || !now.Before(v.windowStart.Add(rl.window)) {
		v = &visitor{limiter: rate.NewLimiter(0, rl.limit), windowStart: now}
		rl.visitors[key] = v
	}

	if !v.limiter.AllowN(now, 1) {
		return false, v.windowStart.Add(rl.window).Sub(now)
	}
	return true, 0
}

// collect drops callers whose window has ended.
func (rl *RateLimiter) collect(now time.Time) {
	if now.Sub(rl.lastGC) < rl.window {
		return
	}
	for k, v := range rl.visitors {
		if !now.Before(v.windowStart.Add(rl.window)) {
			delete(rl.visitors, k)
		}
	}
	rl.lastGC = now
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := rl.Allow(clientKey(r))
		w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.limit))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			httputil.WriteMessage(w, http.StatusTooManyRequests, rl.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
