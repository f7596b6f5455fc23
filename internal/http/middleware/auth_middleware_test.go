package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campuslink/campuslink-server/internal/database"
	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/security"
	"github.com/campuslink/campuslink-server/internal/service"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type authTestHarness struct {
	users    repository.UserRepository
	tokenSvc *service.TokenService
	jwtMgr   *security.JWTManager
}

func newAuthHarness(t *testing.T) *authTestHarness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	jwtMgr := security.NewJWTManager("campuslink", "campuslink-api", testJWTSecret)
	return &authTestHarness{
		users:    repository.NewUserRepository(db),
		tokenSvc: service.NewTokenService(jwtMgr, repository.NewVerificationTokenRepository(db), time.Hour, time.Hour, time.Hour),
		jwtMgr:   jwtMgr,
	}
}

func (h *authTestHarness) createUser(t *testing.T, active bool) *domain.User {
	t.Helper()
	u := &domain.User{
		Email: "admin@campus.edu", FirstName: "Test", LastName: "Admin",
		Role: domain.RoleAdmin, IsActive: active,
	}
	if err := h.users.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Success {
		t.Fatal("error responses must carry success=false")
	}
	return body.Code
}

func TestRequireAuthRejections(t *testing.T) {
	h := newAuthHarness(t)
	user := h.createUser(t, true)

	goodToken, _, err := h.tokenSvc.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	expiredToken, err := h.jwtMgr.Sign("1", "admin", -time.Minute)
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	orphanToken, err := h.jwtMgr.Sign("9999", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign orphan token: %v", err)
	}

	handler := RequireAuth(h.tokenSvc, h.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"missing token", "", "NO_TOKEN"},
		{"garbage token", "not.a.jwt", "INVALID_TOKEN"},
		{"expired token", expiredToken, "EXPIRED_TOKEN"},
		{"unknown subject", orphanToken, "SUBJECT_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if code := decodeErrorCode(t, rr); code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, code)
			}
		})
	}

	// sanity: the good token still passes
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+goodToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with valid token, got %d", rr.Code)
	}
}

func TestRequireAuthDeactivatedAccount(t *testing.T) {
	h := newAuthHarness(t)
	user := h.createUser(t, true)
	token, _, err := h.tokenSvc.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := h.users.SetActive(user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	handler := RequireAuth(h.tokenSvc, h.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("deactivated account must not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != "ACCOUNT_DEACTIVATED" {
		t.Fatalf("expected ACCOUNT_DEACTIVATED, got %s", code)
	}
}

func TestRequireAuthAttachesSubject(t *testing.T) {
	h := newAuthHarness(t)
	user := h.createUser(t, true)
	token, _, err := h.tokenSvc.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	handler := RequireAuth(h.tokenSvc, h.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		if !ok || subject.ID != user.ID {
			t.Fatalf("subject missing from context: %v %+v", ok, subject)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestOptionalAuthFallsThroughAnonymously(t *testing.T) {
	h := newAuthHarness(t)
	user := h.createUser(t, true)
	token, _, err := h.tokenSvc.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	handler := OptionalAuth(h.tokenSvc, h.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SubjectFromContext(r.Context()); ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	anon := httptest.NewRequest(http.MethodGet, "/api/announcements", nil)
	anon.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, anon)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("bad token should fall through anonymously, got %d", rr.Code)
	}

	authed := httptest.NewRequest(http.MethodGet, "/api/announcements", nil)
	authed.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, authed)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid token should attach the subject, got %d", rr.Code)
	}
}
