package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/campuslink/campuslink-server/internal/config"
	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/security"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDeactivated     = errors.New("account is deactivated")
	ErrEmailTaken             = errors.New("email already registered")
	ErrStudentIDTaken         = errors.New("student id already registered")
	ErrWeakPassword           = errors.New("password must be at least 6 characters")
	ErrSamePassword           = errors.New("new password must differ from current password")
	ErrInvalidOrExpiredSecret = errors.New("invalid or expired token")
	ErrAlreadyVerified        = errors.New("email is already verified")
	ErrEmailSendFailed        = errors.New("email could not be sent")
)

type AuthService struct {
	cfg      *config.Config
	tokenSvc *TokenService
	userRepo repository.UserRepository
	credRepo repository.CredentialRepository
	notifier EmailNotifier
	logger   *slog.Logger
}

func NewAuthService(
	cfg *config.Config,
	tokenSvc *TokenService,
	userRepo repository.UserRepository,
	credRepo repository.CredentialRepository,
	notifier EmailNotifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		tokenSvc: tokenSvc,
		userRepo: userRepo,
		credRepo: credRepo,
		notifier: notifier,
		logger:   logger,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        domain.Role
	StudentID   string
	PhoneNumber string
	Department  string
	Year        int
	HostelBlock string
	RoomNumber  string
}

// AuthResult pairs the authenticated subject with a freshly issued session
// token.
type AuthResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (s *AuthService) Register(in RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleStudent
	}

	user := &domain.User{
		Email:       email,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Role:        role,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		IsActive:    true,
	}
	if role == domain.RoleStudent {
		sid := strings.TrimSpace(strings.ToUpper(in.StudentID))
		if sid != "" {
			user.StudentID = &sid
		}
		user.Profile = &domain.StudentProfile{
			Department:  strings.TrimSpace(in.Department),
			Year:        in.Year,
			HostelBlock: strings.TrimSpace(in.HostelBlock),
			RoomNumber:  strings.TrimSpace(in.RoomNumber),
		}
	}
	if err := user.ValidateForRole(); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if user.StudentID != nil {
		if _, err := s.userRepo.FindByStudentID(*user.StudentID); err == nil {
			return nil, ErrStudentIDTaken
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	if err := s.credRepo.Create(&domain.Credential{UserID: user.ID, PasswordHash: hash}); err != nil {
		return nil, err
	}

	// Best effort; registration never fails on mail trouble.
	go func() {
		if err := s.notifier.SendWelcome(context.Background(), WelcomeNotification{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.FullName(),
		}); err != nil {
			s.logger.Warn("welcome email failed", "user_id", user.ID, "error", err)
		}
	}()

	return s.issueFor(user)
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	cred, err := s.credRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.VerifyPassword(cred.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.FindByID(cred.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	now := time.Now().UTC()
	if err := s.userRepo.TouchLastLogin(user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return s.issueFor(user)
}

func (s *AuthService) GetMe(userID uint) (*domain.User, error) {
	return s.userRepo.FindByID(userID)
}

// Refresh re-issues a session for an already-authenticated subject. With
// stateless tokens there is nothing to rotate server side.
func (s *AuthService) Refresh(userID uint) (*AuthResult, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	return s.issueFor(user)
}

func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword string) (*AuthResult, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	cred, err := s.credRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !security.VerifyPassword(cred.PasswordHash, currentPassword) {
		return nil, ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return nil, ErrSamePassword
	}
	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.credRepo.UpdatePassword(userID, newHash); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	return s.issueFor(user)
}

// ForgotPassword issues a one-time reset secret and emails it. Unknown
// addresses return success so the endpoint cannot be used to probe which
// emails are registered. A failed send burns the secret and reports the
// failure, because the caller is now stuck without the link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	now := time.Now().UTC()
	secret, expiresAt, err := s.tokenSvc.IssueOneTimeSecret(user.ID, domain.TokenPurposePasswordReset, now)
	if err != nil {
		return err
	}
	err = s.notifier.SendPasswordReset(ctx, PasswordResetNotification{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.FullName(),
		Token:     secret,
		ExpiresAt: expiresAt,
		ResetURL:  s.buildLink("/resetpassword", secret),
	})
	if err != nil {
		if invErr := s.tokenSvc.InvalidateOneTimeSecrets(user.ID, domain.TokenPurposePasswordReset, now); invErr != nil {
			s.logger.Error("failed to burn reset secret after send failure", "user_id", user.ID, "error", invErr)
		}
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}
	return nil
}

func (s *AuthService) ResetPassword(secret, newPassword string) (*AuthResult, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrInvalidOrExpiredSecret
	}
	now := time.Now().UTC()
	userID, err := s.tokenSvc.ConsumeOneTimeSecret(secret, domain.TokenPurposePasswordReset, now)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return nil, ErrInvalidOrExpiredSecret
		}
		return nil, err
	}
	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.credRepo.UpdatePassword(userID, newHash); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	return s.issueFor(user)
}

func (s *AuthService) RequestEmailVerification(ctx context.Context, userID uint) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	now := time.Now().UTC()
	secret, expiresAt, err := s.tokenSvc.IssueOneTimeSecret(user.ID, domain.TokenPurposeEmailVerify, now)
	if err != nil {
		return err
	}
	err = s.notifier.SendEmailVerification(ctx, VerificationNotification{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.FullName(),
		Token:     secret,
		ExpiresAt: expiresAt,
		VerifyURL: s.buildLink("/verify", secret),
	})
	if err != nil {
		if invErr := s.tokenSvc.InvalidateOneTimeSecrets(user.ID, domain.TokenPurposeEmailVerify, now); invErr != nil {
			s.logger.Error("failed to burn verification secret after send failure", "user_id", user.ID, "error", invErr)
		}
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}
	return nil
}

func (s *AuthService) ConfirmEmailVerification(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrInvalidOrExpiredSecret
	}
	now := time.Now().UTC()
	userID, err := s.tokenSvc.ConsumeOneTimeSecret(secret, domain.TokenPurposeEmailVerify, now)
	if err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return ErrInvalidOrExpiredSecret
		}
		return err
	}
	return s.userRepo.UpdateDetails(userID, map[string]any{"email_verified": true})
}

// Deactivate disables the account after re-confirming the password. Already
// issued tokens keep verifying cryptographically but fail the middleware's
// active check.
func (s *AuthService) Deactivate(userID uint, password string) error {
	cred, err := s.credRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if !security.VerifyPassword(cred.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	return s.userRepo.SetActive(userID, false)
}

func (s *AuthService) issueFor(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokenSvc.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) buildLink(path, secret string) string {
	base := strings.TrimRight(s.cfg.AppBaseURL, "/")
	u, err := url.Parse(base + path + "/" + secret)
	if err != nil {
		return ""
	}
	return u.String()
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrWeakPassword
	}
	return nil
}
