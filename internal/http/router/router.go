package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/health"
	"github.com/campuslink/campuslink-server/internal/http/handler"
	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/service"
)

const avatarUploadBodyLimit = 6 << 20

type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	AnnouncementHandler *handler.AnnouncementHandler
	ComplaintHandler    *handler.ComplaintHandler

	TokenService *service.TokenService
	Users        repository.UserRepository

	CORSOrigins []string

	// GeneralLimiter backs the per-IP limit on the whole API surface;
	// SensitiveLimiter backs the tighter per-subject budgets on credential
	// routes. Either may be local or Redis backed.
	GeneralLimiter    *middleware.RateLimiter
	SensitiveLimiter  middleware.Limiter
	SensitiveOpLimit  int
	SensitiveOpWindow time.Duration

	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GeneralLimiter != nil {
		r.Use(dep.GeneralLimiter.Middleware())
	}

	sensitive := func(class string) func(http.Handler) http.Handler {
		limiter := dep.SensitiveLimiter
		if limiter == nil {
			limiter = middleware.NewLocalSlidingWindowLimiter()
		}
		limit, window := dep.SensitiveOpLimit, dep.SensitiveOpWindow
		if limit <= 0 {
			limit = 5
		}
		if window <= 0 {
			window = 15 * time.Minute
		}
		return middleware.SensitiveOpLimit(limiter, class, limit, window)
	}

	requireAuth := middleware.RequireAuth(dep.TokenService, dep.Users)
	optionalAuth := middleware.OptionalAuth(dep.TokenService, dep.Users)
	requireAdmin := middleware.RequireRoles(domain.RoleAdmin)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", dep.AuthHandler.Register)
		r.With(sensitive("login")).Post("/login", dep.AuthHandler.Login)
		r.With(sensitive("password_forgot")).Post("/forgotpassword", dep.AuthHandler.ForgotPassword)
		r.With(sensitive("password_reset")).Put("/resetpassword/{resettoken}", dep.AuthHandler.ResetPassword)
		r.Get("/verify/{token}", dep.AuthHandler.VerifyEmail)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", dep.AuthHandler.Me)
			r.Get("/logout", dep.AuthHandler.Logout)
			r.Post("/refresh", dep.AuthHandler.Refresh)
			r.Put("/updatedetails", dep.AuthHandler.UpdateDetails)
			r.With(sensitive("password_change")).Put("/updatepassword", dep.AuthHandler.UpdatePassword)
			r.With(sensitive("verify_resend")).Post("/resend-verification", dep.AuthHandler.ResendVerification)
			r.With(sensitive("deactivate")).Put("/deactivate", dep.AuthHandler.Deactivate)
		})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(requireAdmin).Get("/", dep.UserHandler.List)
		r.With(middleware.DepartmentScope("department")).Get("/department/{department}", dep.UserHandler.ListByDepartment)
		r.With(middleware.OwnerOrAdmin("id")).Get("/{id}", dep.UserHandler.Get)
		// Avatar upload needs a higher body limit than the global default.
		r.With(middleware.BodyLimit(avatarUploadBodyLimit)).Post("/me/avatar", dep.UserHandler.UploadAvatar)
		r.Delete("/me/avatar", dep.UserHandler.DeleteAvatar)
	})

	r.Route("/api/announcements", func(r chi.Router) {
		r.With(optionalAuth).Get("/", dep.AnnouncementHandler.List)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/", dep.AnnouncementHandler.Create)
			r.Get("/all", dep.AnnouncementHandler.ListAll)
			r.Put("/{id}", dep.AnnouncementHandler.Update)
			r.Delete("/{id}", dep.AnnouncementHandler.Delete)
		})
		r.With(optionalAuth).Get("/{id}", dep.AnnouncementHandler.Get)
	})

	r.Route("/api/complaints", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", dep.ComplaintHandler.Create)
		r.Get("/", dep.ComplaintHandler.List)
		r.With(requireAdmin).Get("/escalations", dep.ComplaintHandler.ListEscalations)
		r.With(middleware.HostelScope("block")).Get("/hostel/{block}", dep.ComplaintHandler.ListByHostel)
		r.Get("/{id}", dep.ComplaintHandler.Get)
		r.With(requireAdmin).Put("/{id}/status", dep.ComplaintHandler.UpdateStatus)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
