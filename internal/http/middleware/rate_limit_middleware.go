package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
)

// Limiter answers whether one more event is allowed for the key within the
// window, and how long the caller should wait when it is not.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

// localSlidingWindowLimiter keeps a per-key log of event timestamps and
// counts only those inside the trailing window. Single process only.
type localSlidingWindowLimiter struct {
	mu      sync.Mutex
	events  map[string][]time.Time
	cleanup time.Time
}

func NewLocalSlidingWindowLimiter() Limiter {
	return &localSlidingWindowLimiter{
		events:  make(map[string][]time.Time),
		cleanup: time.Now().Add(time.Minute),
	}
}

func (l *localSlidingWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, log := range l.events {
			if len(log) == 0 || now.Sub(log[len(log)-1]) > window {
				delete(l.events, k)
			}
		}
		l.cleanup = now.Add(window)
	}

	cutoff := now.Add(-window)
	log := l.events[key]
	live := log[:0]
	for _, at := range log {
		if at.After(cutoff) {
			live = append(live, at)
		}
	}
	if len(live) >= limit {
		l.events[key] = live
		// the oldest live event rolling out of the window frees a slot
		retryAfter := live[0].Add(window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	l.events[key] = append(live, now)
	return true, 0, nil
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	mode    FailureMode
	scope   string
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewDistributedRateLimiter(NewLocalSlidingWindowLimiter(), limit, window, FailClosed, "local")
}

func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		mode:    mode,
		scope:   scope,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIPKey(r)
			allowed, retryAfter, err := rl.limiter.Allow(r.Context(), key, rl.limit, rl.window)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "error")
				if rl.mode == FailOpen {
					slog.Warn("rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"mode", string(rl.mode),
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				rejectRateLimited(w, r, rl.window)
				return
			}
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "limited")
				rejectRateLimited(w, r, retryAfter)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveOpLimit throttles a class of sensitive operations (login, password
// reset and the like) per caller. The key binds the operation class, the
// client IP and the authenticated subject when there is one, so an attacker
// rotating accounts from one address still shares a budget.
func SensitiveOpLimit(limiter Limiter, class string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := "anon"
			if u, ok := SubjectFromContext(r.Context()); ok {
				subject = strconv.FormatUint(uint64(u.ID), 10)
			}
			key := class + "|" + clientIPKey(r) + "|" + subject
			allowed, retryAfter, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				// sensitive routes fail closed, always
				observability.RecordRateLimitDecision(r.Context(), class, "error")
				rejectRateLimited(w, r, window)
				return
			}
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), class, "limited")
				rejectRateLimited(w, r, retryAfter)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
	response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests, please try again later", nil)
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	if d <= 0 {
		return "1"
	}
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
