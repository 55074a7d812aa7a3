package httpx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// windowCounter counts hits for key in the current fixed window and reports
// how long until that window resets.
type windowCounter interface {
	hit(ctx context.Context, key string) (count int64, resetIn time.Duration, err error)
}

type limitPolicy struct {
	limit    int
	window   time.Duration
	logger   *slog.Logger
	failOpen bool
}

func normalizeLimit(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return limit, window
}

// rateLimit keys on the client address. It runs ahead of token
// verification, so identity headers are not trusted here.
func rateLimit(counter windowCounter, keyPrefix string, p limitPolicy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, resetIn, err := counter.hit(r.Context(), keyPrefix+clientKey(r))
			if err != nil {
				if p.logger != nil {
					p.logger.Warn("rate limiter error", "err", err, "fail_open", p.failOpen)
				}
				if p.failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(p.limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(p.limit)-count, 0), 10))
			if count > int64(p.limit) {
				if resetIn <= 0 {
					resetIn = p.window
				}
				h.Set("Retry-After", strconv.Itoa(int((resetIn+time.Second-1)/time.Second)))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter is a per-process fixed-window limiter, used when no Redis is
// configured.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow
}

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

// pruneThreshold bounds the window map between sweeps.
const pruneThreshold = 10000

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	limit, window = normalizeLimit(limit, window)
	return &RateLimiter{limit: limit, window: window, now: time.Now, windows: map[string]*fixedWindow{}}
}

func (rl *RateLimiter) Middleware() Middleware {
	return rateLimit(rl, "", limitPolicy{limit: rl.limit, window: rl.window})
}

func (rl *RateLimiter) hit(_ context.Context, key string) (int64, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.windows) >= pruneThreshold {
		for k, fw := range rl.windows {
			if !now.Before(fw.resetAt) {
				delete(rl.windows, k)
			}
		}
	}

	fw := rl.windows[key]
	if fw == nil || !now.Before(fw.resetAt) {
		fw = &fixedWindow{resetAt: now.Add(rl.window)}
		rl.windows[key] = fw
	}
	fw.count++
	return fw.count, fw.resetAt.Sub(now), nil
}

// clientKey is the first X-Forwarded-For hop when the gateway sits behind a
// load balancer, else the peer address.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
