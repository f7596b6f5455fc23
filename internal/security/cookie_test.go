package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewCookieManagerSameSiteMapping(t *testing.T) {
	if got := NewCookieManager("", true, "lax").SameSite; got != http.SameSiteLaxMode {
		t.Fatalf("lax mapping mismatch: %v", got)
	}
	if got := NewCookieManager("", true, "none").SameSite; got != http.SameSiteNoneMode {
		t.Fatalf("none mapping mismatch: %v", got)
	}
	if got := NewCookieManager("", true, "unexpected").SameSite; got != http.SameSiteStrictMode {
		t.Fatalf("default mapping mismatch: %v", got)
	}
}

func TestSetSessionCookieFlags(t *testing.T) {
	mgr := NewCookieManager("campus.example.edu", true, "strict")
	rr := httptest.NewRecorder()
	mgr.SetSessionCookie(rr, "tok", 720*time.Hour)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "tok" {
		t.Fatalf("unexpected cookie: %#v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
		t.Fatalf("unexpected cookie flags: %#v", c)
	}
	if c.MaxAge != int((720 * time.Hour).Seconds()) {
		t.Fatalf("unexpected max-age: %d", c.MaxAge)
	}
}

func TestClearSessionCookie(t *testing.T) {
	mgr := NewCookieManager("", false, "strict")
	rr := httptest.NewRecorder()
	mgr.ClearSessionCookie(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != "none" || c.MaxAge != 10 || !c.HttpOnly {
		t.Fatalf("expected near-immediate placeholder cookie, got %#v", c)
	}
}

func TestExtractTokenPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	req.Header.Set("x-auth-token", "from-legacy")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})

	if got := ExtractToken(req); got != "from-header" {
		t.Fatalf("bearer header should win, got %q", got)
	}

	req.Header.Del("Authorization")
	if got := ExtractToken(req); got != "from-legacy" {
		t.Fatalf("legacy header should win over cookie, got %q", got)
	}

	req.Header.Del("x-auth-token")
	if got := ExtractToken(req); got != "from-cookie" {
		t.Fatalf("cookie fallback failed, got %q", got)
	}

	empty := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ExtractToken(empty); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
