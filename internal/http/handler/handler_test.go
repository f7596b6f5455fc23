package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campuslink/campuslink-server/internal/config"
	"github.com/campuslink/campuslink-server/internal/database"
	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/security"
	"github.com/campuslink/campuslink-server/internal/service"
)

const testSessionTTL = time.Hour

// fakeStorage satisfies service.StorageService without talking to an object
// store.
type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) UploadAvatar(_ context.Context, userID uint, file io.Reader, _ int64, contentType string) (string, error) {
	if contentType != "image/png" && contentType != "image/jpeg" {
		return "", service.ErrInvalidFileType
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("avatars/user-%d/test.png", userID)
	f.objects[key] = data
	return key, nil
}

func (f *fakeStorage) DeleteAvatar(_ context.Context, userID uint, objectKey string) error {
	if !strings.HasPrefix(objectKey, fmt.Sprintf("avatars/user-%d/", userID)) {
		return service.ErrUnauthorizedObject
	}
	delete(f.objects, objectKey)
	return nil
}

func (f *fakeStorage) GenerateAvatarURL(_ context.Context, objectKey string) (string, error) {
	return "https://cdn.campus.edu/" + objectKey, nil
}

type handlerHarness struct {
	router  chi.Router
	authSvc *service.AuthService
	userSvc *service.UserService
	users   repository.UserRepository
	storage *fakeStorage
	db      *gorm.DB
}

func newHandlerHarness(t *testing.T) *handlerHarness {
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

	cfg := &config.Config{AppBaseURL: "http://localhost:3000"}
	userRepo := repository.NewUserRepository(db)
	credRepo := repository.NewCredentialRepository(db)
	tokenRepo := repository.NewVerificationTokenRepository(db)
	jwtMgr := security.NewJWTManager("campuslink", "campuslink-api", "0123456789abcdef0123456789abcdef")
	tokenSvc := service.NewTokenService(jwtMgr, tokenRepo, testSessionTTL, time.Hour, 24*time.Hour)
	notifier := service.NewDevNotifier(slog.Default())
	authSvc := service.NewAuthService(cfg, tokenSvc, userRepo, credRepo, notifier, slog.Default())
	storage := newFakeStorage()
	userSvc := service.NewUserService(userRepo, storage)
	cookieMgr := security.NewCookieManager("", false, "strict")
	abuseGuard := service.NewInMemoryAuthAbuseGuard(service.AuthAbusePolicy{
		FreeAttempts: 5,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  time.Minute,
	})

	authHandler := NewAuthHandler(authSvc, userSvc, cookieMgr, abuseGuard, testSessionTTL)
	userHandler := NewUserHandler(userSvc)
	announcementHandler := NewAnnouncementHandler(service.NewAnnouncementService(repository.NewAnnouncementRepository(db)))
	complaintHandler := NewComplaintHandler(service.NewComplaintService(repository.NewComplaintRepository(db), userRepo, notifier, slog.Default()))

	requireAuth := middleware.RequireAuth(tokenSvc, userRepo)
	requireAdmin := middleware.RequireRoles(domain.RoleAdmin)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/forgotpassword", authHandler.ForgotPassword)
		r.Put("/resetpassword/{resettoken}", authHandler.ResetPassword)
		r.Get("/verify/{token}", authHandler.VerifyEmail)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.Me)
			r.Get("/logout", authHandler.Logout)
			r.Post("/refresh", authHandler.Refresh)
			r.Put("/updatedetails", authHandler.UpdateDetails)
			r.Put("/updatepassword", authHandler.UpdatePassword)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.Put("/deactivate", authHandler.Deactivate)
		})
	})
	r.Route("/api/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(requireAdmin).Get("/", userHandler.List)
		r.With(middleware.DepartmentScope("department")).Get("/department/{department}", userHandler.ListByDepartment)
		r.Get("/{id}", userHandler.Get)
		r.Post("/me/avatar", userHandler.UploadAvatar)
		r.Delete("/me/avatar", userHandler.DeleteAvatar)
	})
	r.Route("/api/announcements", func(r chi.Router) {
		r.With(middleware.OptionalAuth(tokenSvc, userRepo)).Get("/", announcementHandler.List)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/", announcementHandler.Create)
			r.Get("/all", announcementHandler.ListAll)
			r.Put("/{id}", announcementHandler.Update)
			r.Delete("/{id}", announcementHandler.Delete)
		})
		r.With(middleware.OptionalAuth(tokenSvc, userRepo)).Get("/{id}", announcementHandler.Get)
	})
	r.Route("/api/complaints", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", complaintHandler.Create)
		r.Get("/", complaintHandler.List)
		r.With(requireAdmin).Get("/escalations", complaintHandler.ListEscalations)
		r.With(middleware.HostelScope("block")).Get("/hostel/{block}", complaintHandler.ListByHostel)
		r.Get("/{id}", complaintHandler.Get)
		r.With(requireAdmin).Put("/{id}/status", complaintHandler.UpdateStatus)
	})

	return &handlerHarness{
		router:  r,
		authSvc: authSvc,
		userSvc: userSvc,
		users:   userRepo,
		storage: storage,
		db:      db,
	}
}

func (h *handlerHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func (h *handlerHarness) registerStudent(t *testing.T, i int) *service.AuthResult {
	t.Helper()
	result, err := h.authSvc.Register(service.RegisterInput{
		Email:       fmt.Sprintf("student%d@campus.edu", i),
		Password:    "sekrit123",
		FirstName:   "Test",
		LastName:    fmt.Sprintf("Student%d", i),
		StudentID:   fmt.Sprintf("STU%04d", i),
		Department:  "Computer Science",
		Year:        2,
		HostelBlock: "A",
		RoomNumber:  fmt.Sprintf("10%d", i),
	})
	if err != nil {
		t.Fatalf("register student %d: %v", i, err)
	}
	return result
}

func (h *handlerHarness) registerStudentIn(t *testing.T, email, studentID, department, hostelBlock string) *service.AuthResult {
	t.Helper()
	result, err := h.authSvc.Register(service.RegisterInput{
		Email:       email,
		Password:    "sekrit123",
		FirstName:   "Test",
		LastName:    "Student",
		StudentID:   studentID,
		Department:  department,
		Year:        2,
		HostelBlock: hostelBlock,
		RoomNumber:  "101",
	})
	if err != nil {
		t.Fatalf("register student %s: %v", email, err)
	}
	return result
}

func (h *handlerHarness) registerAdmin(t *testing.T) *service.AuthResult {
	t.Helper()
	result, err := h.authSvc.Register(service.RegisterInput{
		Email:     "admin@campus.edu",
		Password:  "sekrit123",
		FirstName: "Site",
		LastName:  "Admin",
		Role:      domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	return result
}
