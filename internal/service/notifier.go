package service

import (
	"context"
	"log/slog"
	"time"
)

//go:generate mockgen -source=notifier.go -destination=notifier_mock_test.go -package=service

type WelcomeNotification struct {
	UserID uint
	Email  string
	Name   string
}

type PasswordResetNotification struct {
	UserID    uint
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
	ResetURL  string
}

type VerificationNotification struct {
	UserID    uint
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
	VerifyURL string
}

type ComplaintUpdateNotification struct {
	Email          string
	Name           string
	ComplaintID    uint
	ComplaintTitle string
	Status         string
	Note           string
}

// EmailNotifier is the outbound mail surface. Welcome and complaint-update
// mails are best effort; reset and verification sends are load-bearing and
// their errors propagate.
type EmailNotifier interface {
	SendWelcome(ctx context.Context, n WelcomeNotification) error
	SendPasswordReset(ctx context.Context, n PasswordResetNotification) error
	SendEmailVerification(ctx context.Context, n VerificationNotification) error
	SendComplaintUpdate(ctx context.Context, n ComplaintUpdateNotification) error
}

// DevNotifier logs instead of sending. Used in development and tests where no
// SMTP relay is configured; the logged link lets a developer complete flows.
type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) SendWelcome(ctx context.Context, m WelcomeNotification) error {
	n.logger.InfoContext(ctx, "welcome email",
		"user_id", m.UserID, "email", m.Email)
	return nil
}

func (n *DevNotifier) SendPasswordReset(ctx context.Context, m PasswordResetNotification) error {
	n.logger.InfoContext(ctx, "password reset token issued",
		"user_id", m.UserID, "email", m.Email, "expires_at", m.ExpiresAt, "reset", m.ResetURL)
	return nil
}

func (n *DevNotifier) SendEmailVerification(ctx context.Context, m VerificationNotification) error {
	n.logger.InfoContext(ctx, "email verification token issued",
		"user_id", m.UserID, "email", m.Email, "expires_at", m.ExpiresAt, "verification", m.VerifyURL)
	return nil
}

func (n *DevNotifier) SendComplaintUpdate(ctx context.Context, m ComplaintUpdateNotification) error {
	n.logger.InfoContext(ctx, "complaint update email",
		"email", m.Email, "complaint_id", m.ComplaintID, "status", m.Status)
	return nil
}
