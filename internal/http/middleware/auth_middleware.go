package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/security"
	"github.com/campuslink/campuslink-server/internal/service"
)

type contextKey string

const subjectContextKey contextKey = "subject"

// SubjectFromContext returns the authenticated user attached by RequireAuth
// or OptionalAuth.
func SubjectFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(subjectContextKey).(*domain.User)
	return u, ok
}

func withSubject(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, subjectContextKey, u)
}

// resolveSubject runs the shared verification pipeline: extract, verify,
// look up the subject fresh (never trusting the role claim for
// authorization), check activation. On failure it returns the taxonomy code
// to surface.
func resolveSubject(r *http.Request, tokenSvc *service.TokenService, users repository.UserRepository) (*domain.User, string) {
	raw := security.ExtractToken(r)
	if raw == "" {
		return nil, response.CodeNoToken
	}
	uid, _, err := tokenSvc.Verify(raw)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, response.CodeExpiredToken
		}
		return nil, response.CodeInvalidToken
	}
	user, err := users.FindByID(uid)
	if err != nil {
		return nil, response.CodeSubjectNotFound
	}
	if !user.IsActive {
		return nil, response.CodeAccountDeactivated
	}
	return user, ""
}

// RequireAuth rejects requests without a valid session token belonging to an
// active account.
func RequireAuth(tokenSvc *service.TokenService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, code := resolveSubject(r, tokenSvc, users)
			if user == nil {
				observability.RecordTokenValidation(r.Context(), "failure", code)
				response.Error(w, r, http.StatusUnauthorized, code, authFailureMessage(code), nil)
				return
			}
			observability.RecordTokenValidation(r.Context(), "success", "")
			next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the subject when a valid token is present and lets
// the request through anonymously otherwise.
func OptionalAuth(tokenSvc *service.TokenService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, _ := resolveSubject(r, tokenSvc, users); user != nil {
				r = r.WithContext(withSubject(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authFailureMessage(code string) string {
	switch code {
	case response.CodeNoToken:
		return "not authorized to access this route"
	case response.CodeExpiredToken:
		return "session has expired, please log in again"
	case response.CodeInvalidToken:
		return "not authorized to access this route"
	case response.CodeSubjectNotFound:
		return "no user found for this token"
	case response.CodeAccountDeactivated:
		return "account has been deactivated"
	default:
		return "not authorized"
	}
}
