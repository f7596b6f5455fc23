package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
)

func TestLocalSlidingWindowLimiter(t *testing.T) {
	limiter := NewLocalSlidingWindowLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "k", 3, 200*time.Millisecond)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should be inside the budget", i)
		}
	}
	allowed, retryAfter, err := limiter.Allow(ctx, "k", 3, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("allow over budget: %v", err)
	}
	if allowed {
		t.Fatal("fourth request in the window must be rejected")
	}
	if retryAfter <= 0 || retryAfter > 200*time.Millisecond {
		t.Fatalf("retry-after should point at the oldest event rolling out, got %v", retryAfter)
	}

	// a different key has its own budget
	if ok, _, _ := limiter.Allow(ctx, "other", 3, 200*time.Millisecond); !ok {
		t.Fatal("separate keys must not share a budget")
	}

	// the window slides: after it passes, the budget frees up again
	time.Sleep(220 * time.Millisecond)
	if ok, _, _ := limiter.Allow(ctx, "k", 3, 200*time.Millisecond); !ok {
		t.Fatal("events outside the window must not count")
	}
}

func TestRateLimiterMiddlewarePerIP(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	handler := rl.Middleware()(http.HandlerFunc(noContent))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/announcements", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("198.51.100.10:1111"); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d should pass, got %d", i, rr.Code)
		}
	}
	rr := send("198.51.100.10:2222")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the budget, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED, got %s", code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("429 must carry a Retry-After header")
	}

	if rr := send("198.51.100.99:1111"); rr.Code != http.StatusNoContent {
		t.Fatalf("other address should not share the budget, got %d", rr.Code)
	}
}

func TestSensitiveOpLimitKeysBySubject(t *testing.T) {
	limiter := NewLocalSlidingWindowLimiter()
	handler := SensitiveOpLimit(limiter, "password_change", 1, time.Minute)(http.HandlerFunc(noContent))

	alice := &domain.User{ID: 1, Role: domain.RoleStudent}
	bob := &domain.User{ID: 2, Role: domain.RoleStudent}

	send := func(u *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/auth/updatepassword", nil)
		req.RemoteAddr = "198.51.100.10:1111"
		if u != nil {
			req = asSubject(req, u)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(alice); rr.Code != http.StatusNoContent {
		t.Fatalf("first attempt should pass, got %d", rr.Code)
	}
	if rr := send(alice); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt should be limited, got %d", rr.Code)
	}
	if rr := send(bob); rr.Code != http.StatusNoContent {
		t.Fatalf("another subject has its own budget, got %d", rr.Code)
	}
	if rr := send(nil); rr.Code != http.StatusNoContent {
		t.Fatalf("anonymous callers have their own budget, got %d", rr.Code)
	}
	if rr := send(nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("anonymous budget still applies, got %d", rr.Code)
	}
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string, int, time.Duration) (bool, time.Duration, error) {
	return false, 0, context.DeadlineExceeded
}

func TestSensitiveOpLimitFailsClosed(t *testing.T) {
	handler := SensitiveOpLimit(erroringLimiter{}, "login", 5, time.Minute)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("backend errors on sensitive routes must not let requests through")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "198.51.100.10:1111"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when the backend errors, got %d", rr.Code)
	}
}

func TestRateLimiterFailOpen(t *testing.T) {
	rl := NewDistributedRateLimiter(erroringLimiter{}, 5, time.Minute, FailOpen, "api")
	handler := rl.Middleware()(http.HandlerFunc(noContent))

	req := httptest.NewRequest(http.MethodGet, "/api/announcements", nil)
	req.RemoteAddr = "198.51.100.10:1111"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("fail-open general limiter should allow on backend error, got %d", rr.Code)
	}
}
