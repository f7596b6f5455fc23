package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
)

// RequireRoles allows only subjects holding one of the given roles. Must run
// after RequireAuth.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
				return
			}
			if _, ok := allowed[subject.Role]; !ok {
				observability.RecordAuthzDecision(r.Context(), "role", "deny")
				response.Error(w, r, http.StatusForbidden, response.CodeRoleDenied, "role is not authorized for this route", nil)
				return
			}
			observability.RecordAuthzDecision(r.Context(), "role", "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// OwnerOrAdmin allows the subject whose ID matches the named URL parameter,
// or any admin.
func OwnerOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
				return
			}
			if subject.IsAdmin() {
				observability.RecordAuthzDecision(r.Context(), "owner", "allow")
				next.ServeHTTP(w, r)
				return
			}
			id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
			if err != nil || uint(id) != subject.ID {
				observability.RecordAuthzDecision(r.Context(), "owner", "deny")
				response.Error(w, r, http.StatusForbidden, response.CodeNotOwner, "not the owner of this resource", nil)
				return
			}
			observability.RecordAuthzDecision(r.Context(), "owner", "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// DepartmentScope allows admins, and students whose department matches the
// named URL parameter.
func DepartmentScope(param string) func(http.Handler) http.Handler {
	return scopeMiddleware(param, "department", func(u *domain.User) string { return u.Department() })
}

// HostelScope allows admins, and students whose hostel block matches the
// named URL parameter.
func HostelScope(param string) func(http.Handler) http.Handler {
	return scopeMiddleware(param, "hostel", func(u *domain.User) string { return u.HostelBlock() })
}

func scopeMiddleware(param, scope string, valueOf func(*domain.User) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
				return
			}
			if subject.IsAdmin() {
				observability.RecordAuthzDecision(r.Context(), scope, "allow")
				next.ServeHTTP(w, r)
				return
			}
			want := chi.URLParam(r, param)
			if want == "" || valueOf(subject) != want {
				observability.RecordAuthzDecision(r.Context(), scope, "deny")
				response.Error(w, r, http.StatusForbidden, response.CodeScopeDenied, "outside of subject's "+scope+" scope", nil)
				return
			}
			observability.RecordAuthzDecision(r.Context(), scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}
