package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/security"
	"github.com/campuslink/campuslink-server/internal/service"
)

type AuthHandler struct {
	authSvc    *service.AuthService
	userSvc    *service.UserService
	cookieMgr  *security.CookieManager
	abuse      service.AuthAbuseGuard
	sessionTTL time.Duration
}

func NewAuthHandler(authSvc *service.AuthService, userSvc *service.UserService, cookieMgr *security.CookieManager, abuse service.AuthAbuseGuard, sessionTTL time.Duration) *AuthHandler {
	if abuse == nil {
		abuse = service.NewNoopAuthAbuseGuard()
	}
	return &AuthHandler{authSvc: authSvc, userSvc: userSvc, cookieMgr: cookieMgr, abuse: abuse, sessionTTL: sessionTTL}
}

type registerPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	StudentID   string `json:"studentId"`
	PhoneNumber string `json:"phoneNumber"`
	Department  string `json:"department"`
	Year        int    `json:"year"`
	HostelBlock string `json:"hostelBlock"`
	RoomNumber  string `json:"roomNumber"`
}

func (p registerPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Role, validation.In("", "student", "admin")),
		validation.Field(&p.Year, validation.Min(0), validation.Max(6)),
	)
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p loginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

type updatePasswordPayload struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (p updatePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CurrentPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

type forgotPasswordPayload struct {
	Email string `json:"email"`
}

func (p forgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

type resetPasswordPayload struct {
	NewPassword string `json:"newPassword"`
}

func (p resetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

type deactivatePayload struct {
	Password string `json:"password"`
}

func (p deactivatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Password, validation.Required),
	)
}

type updateDetailsPayload struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	PhoneNumber *string `json:"phoneNumber"`
	Department  *string `json:"department"`
	Year        *int    `json:"year"`
	HostelBlock *string `json:"hostelBlock"`
	RoomNumber  *string `json:"roomNumber"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var p registerPayload
	if !decodeAndValidate(w, r, &p, &status) {
		return
	}
	result, err := h.authSvc.Register(service.RegisterInput{
		Email:       p.Email,
		Password:    p.Password,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Role:        domain.Role(p.Role),
		StudentID:   p.StudentID,
		PhoneNumber: p.PhoneNumber,
		Department:  p.Department,
		Year:        p.Year,
		HostelBlock: p.HostelBlock,
		RoomNumber:  p.RoomNumber,
	})
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.register.failed", "email", p.Email, "reason", err.Error())
		observability.RecordAuthFlowEvent(r.Context(), "register", "failure")
		writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetSessionCookie(w, result.Token, h.sessionTTL)
	observability.Audit(r, "auth.register.success", "user_id", result.User.ID)
	observability.RecordAuthFlowEvent(r.Context(), "register", "success")
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"user": result.User, "token": result.Token, "expiresAt": result.ExpiresAt,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var p loginPayload
	if !decodeAndValidate(w, r, &p, &status) {
		return
	}
	ip := clientIP(r)
	if delay, err := h.abuse.Check(r.Context(), service.AuthAbuseScopeLogin, p.Email, ip); err == nil && delay > 0 {
		status = "cooldown"
		observability.RecordRateLimitDecision(r.Context(), "auth_abuse", "denied")
		rejectCooldown(w, r, delay)
		return
	}
	result, err := h.authSvc.Login(p.Email, p.Password)
	if err != nil {
		status = "failure"
		if errors.Is(err, service.ErrInvalidCredentials) {
			_, _ = h.abuse.RegisterFailure(r.Context(), service.AuthAbuseScopeLogin, p.Email, ip)
		}
		observability.Audit(r, "auth.login.failed", "email", p.Email, "ip", ip)
		observability.RecordAuthLogin(r.Context(), "failure")
		writeAuthError(w, r, err)
		return
	}
	_ = h.abuse.Reset(r.Context(), service.AuthAbuseScopeLogin, p.Email, ip)
	h.cookieMgr.SetSessionCookie(w, result.Token, h.sessionTTL)
	observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "ip", clientIP(r))
	observability.RecordAuthLogin(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user": result.User, "token": result.Token, "expiresAt": result.ExpiresAt,
	})
}

// Logout clears the session cookie. The token itself stays valid until
// natural expiry; clients are expected to discard it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookieMgr.ClearSessionCookie(w)
	if subject, ok := middleware.SubjectFromContext(r.Context()); ok {
		observability.Audit(r, "auth.logout", "user_id", subject.ID)
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"data": map[string]any{}})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": subject})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", status, time.Since(start))
	}()

	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		status = "failure"
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	result, err := h.authSvc.Refresh(subject.ID)
	if err != nil {
		status = "failure"
		observability.RecordAuthFlowEvent(r.Context(), "refresh", "failure")
		writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetSessionCookie(w, result.Token, h.sessionTTL)
	observability.RecordAuthFlowEvent(r.Context(), "refresh", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user": result.User, "token": result.Token, "expiresAt": result.ExpiresAt,
	})
}

func (h *AuthHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	var p updateDetailsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	user, err := h.userSvc.UpdateDetails(subject.ID, service.UpdateDetailsInput{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.PhoneNumber,
		Department:  p.Department,
		Year:        p.Year,
		HostelBlock: p.HostelBlock,
		RoomNumber:  p.RoomNumber,
	})
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.details.updated", "user_id", subject.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "update_password", status, time.Since(start))
	}()

	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		status = "failure"
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	var p updatePasswordPayload
	if !decodeAndValidate(w, r, &p, &status) {
		return
	}
	result, err := h.authSvc.ChangePassword(subject.ID, p.CurrentPassword, p.NewPassword)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.password.change.failed", "user_id", subject.ID)
		observability.RecordAuthFlowEvent(r.Context(), "password_change", "failure")
		writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetSessionCookie(w, result.Token, h.sessionTTL)
	observability.Audit(r, "auth.password.changed", "user_id", subject.ID)
	observability.RecordAuthFlowEvent(r.Context(), "password_change", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user": result.User, "token": result.Token, "expiresAt": result.ExpiresAt,
	})
}

// ForgotPassword always answers 200 for well-formed requests so callers
// cannot probe which addresses have accounts.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "forgot_password", status, time.Since(start))
	}()

	var p forgotPasswordPayload
	if !decodeAndValidate(w, r, &p, &status) {
		return
	}
	ip := clientIP(r)
	if delay, err := h.abuse.Check(r.Context(), service.AuthAbuseScopeForgot, p.Email, ip); err == nil && delay > 0 {
		status = "cooldown"
		observability.RecordRateLimitDecision(r.Context(), "auth_abuse", "denied")
		rejectCooldown(w, r, delay)
		return
	}
	// every request counts against the backoff budget, accepted or not
	_, _ = h.abuse.RegisterFailure(r.Context(), service.AuthAbuseScopeForgot, p.Email, ip)
	if err := h.authSvc.ForgotPassword(r.Context(), p.Email); err != nil {
		status = "failure"
		observability.RecordAuthFlowEvent(r.Context(), "forgot_password", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.forgot.requested")
	observability.RecordAuthFlowEvent(r.Context(), "forgot_password", "accepted")
	response.JSON(w, r, http.StatusOK, map[string]any{"data": "Email sent"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var p resetPasswordPayload
	if !decodeAndValidate(w, r, &p, &status) {
		return
	}
	result, err := h.authSvc.ResetPassword(chi.URLParam(r, "resettoken"), p.NewPassword)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.password.reset.failed", "ip", clientIP(r))
		observability.RecordAuthFlowEvent(r.Context(), "password_reset", "failure")
		writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.SetSessionCookie(w, result.Token, h.sessionTTL)
	observability.Audit(r, "auth.password.reset.success", "user_id", result.User.ID)
	observability.RecordAuthFlowEvent(r.Context(), "password_reset", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user": result.User, "token": result.Token, "expiresAt": result.ExpiresAt,
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.authSvc.ConfirmEmailVerification(chi.URLParam(r, "token")); err != nil {
		observability.RecordAuthFlowEvent(r.Context(), "email_verify", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.email.verified")
	observability.RecordAuthFlowEvent(r.Context(), "email_verify", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"data": "Email verified"})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	if err := h.authSvc.RequestEmailVerification(r.Context(), subject.ID); err != nil {
		observability.RecordAuthFlowEvent(r.Context(), "email_verify_request", "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.email.verification.sent", "user_id", subject.ID)
	observability.RecordAuthFlowEvent(r.Context(), "email_verify_request", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"data": "Verification email sent"})
}

func (h *AuthHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "deactivate", status, time.Since(start))
	}()

	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		status = "failure"
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	var p deactivatePayload
	if !decodeAndValidate(w, r, &p, &status) {
		return
	}
	if err := h.authSvc.Deactivate(subject.ID, p.Password); err != nil {
		status = "failure"
		observability.AuditStructured(r, observability.AuditInput{
			EventName:   "auth.deactivate",
			ActorUserID: strconv.FormatUint(uint64(subject.ID), 10),
			TargetType:  "user",
			TargetID:    strconv.FormatUint(uint64(subject.ID), 10),
			Action:      "deactivate",
			Outcome:     "failure",
			Reason:      "password_mismatch",
		})
		observability.RecordAuthFlowEvent(r.Context(), "deactivate", "failure")
		writeAuthError(w, r, err)
		return
	}
	h.cookieMgr.ClearSessionCookie(w)
	observability.AuditStructured(r, observability.AuditInput{
		EventName:   "auth.deactivate",
		ActorUserID: strconv.FormatUint(uint64(subject.ID), 10),
		TargetType:  "user",
		TargetID:    strconv.FormatUint(uint64(subject.ID), 10),
		Action:      "deactivate",
		Outcome:     "success",
	})
	observability.RecordAuthFlowEvent(r.Context(), "deactivate", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"data": map[string]any{}})
}

type validatable interface {
	Validate() error
}

// decodeAndValidate parses the JSON body into p and runs its validation
// rules. On failure it writes the error response and flips status.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, p validatable, status *string) bool {
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		*status = "failure"
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid request body", nil)
		return false
	}
	if err := p.Validate(); err != nil {
		*status = "failure"
		var details any
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			details = fieldErrs
		}
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, "validation failed", details)
		return false
	}
	return true
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid credentials", nil)
	case errors.Is(err, service.ErrAccountDeactivated):
		response.Error(w, r, http.StatusUnauthorized, response.CodeAccountDeactivated, "account has been deactivated", nil)
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrStudentIDTaken):
		response.Error(w, r, http.StatusBadRequest, response.CodeDuplicate, err.Error(), nil)
	case errors.Is(err, service.ErrSamePassword):
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, err.Error(), nil)
	case errors.Is(err, service.ErrWeakPassword):
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidOrExpiredSecret):
		response.Error(w, r, http.StatusBadRequest, response.CodeInvalidOrExpiredToken, "invalid or expired token", nil)
	case errors.Is(err, service.ErrAlreadyVerified):
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrIncompleteStudentProfile):
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
	}
}

func rejectCooldown(w http.ResponseWriter, r *http.Request, delay time.Duration) {
	secs := int(delay.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many attempts, please try again later", nil)
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
