package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/security"
)

// TokenService issues and verifies the stateless session JWTs and the
// one-time secrets used for password reset and email verification. Sessions
// are not stored server side; revocation happens by natural expiry.
type TokenService struct {
	jwtMgr     *security.JWTManager
	tokenRepo  repository.VerificationTokenRepository
	sessionTTL time.Duration
	resetTTL   time.Duration
	verifyTTL  time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, tokenRepo repository.VerificationTokenRepository, sessionTTL, resetTTL, verifyTTL time.Duration) *TokenService {
	return &TokenService{
		jwtMgr:     jwtMgr,
		tokenRepo:  tokenRepo,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		verifyTTL:  verifyTTL,
	}
}

func (s *TokenService) SessionTTL() time.Duration { return s.sessionTTL }

// Issue signs a session token for the user. The role claim is informational;
// authorization always re-reads the subject from storage.
func (s *TokenService) Issue(user *domain.User) (token string, expiresAt time.Time, err error) {
	token, err = s.jwtMgr.Sign(strconv.FormatUint(uint64(user.ID), 10), string(user.Role), s.sessionTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(s.sessionTTL), nil
}

// Verify parses a session token and returns the subject's user ID and role
// claim. Expired tokens surface security.ErrTokenExpired, everything else
// security.ErrTokenInvalid.
func (s *TokenService) Verify(raw string) (userID uint, role string, err error) {
	claims, err := s.jwtMgr.Parse(raw)
	if err != nil {
		return 0, "", err
	}
	id64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: malformed subject", security.ErrTokenInvalid)
	}
	return uint(id64), claims.Role, nil
}

// IssueOneTimeSecret creates a single-use secret for the given purpose and
// stores its sha256 hash. Any previously active secrets for the same user and
// purpose are invalidated first, so only the latest emailed link works.
func (s *TokenService) IssueOneTimeSecret(userID uint, purpose string, now time.Time) (plaintext string, expiresAt time.Time, err error) {
	ttl := s.verifyTTL
	if purpose == domain.TokenPurposePasswordReset {
		ttl = s.resetTTL
	}
	if err := s.tokenRepo.InvalidateActiveByUserPurpose(userID, purpose, now); err != nil {
		return "", time.Time{}, err
	}
	// Opportunistic sweep keeps the table from accumulating dead rows without
	// needing a scheduled job. Best effort.
	_, _ = s.tokenRepo.DeleteExpired(now.Add(-24 * time.Hour))
	plaintext, err = security.NewRandomString(32)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt = now.Add(ttl)
	err = s.tokenRepo.Create(&domain.VerificationToken{
		UserID:    userID,
		TokenHash: security.HashToken(plaintext),
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return plaintext, expiresAt, nil
}

// ConsumeOneTimeSecret validates a presented secret against the stored hash
// and burns it. Returns the owning user ID.
func (s *TokenService) ConsumeOneTimeSecret(plaintext, purpose string, now time.Time) (uint, error) {
	record, err := s.tokenRepo.FindActiveByHashPurpose(security.HashToken(plaintext), purpose, now)
	if err != nil {
		return 0, err
	}
	if err := s.tokenRepo.Consume(record.ID, record.UserID, now); err != nil {
		return 0, err
	}
	return record.UserID, nil
}

// InvalidateOneTimeSecrets burns all active secrets for a user and purpose
// without consuming any particular one. Used when a send failure means the
// just-issued secret must not stay live.
func (s *TokenService) InvalidateOneTimeSecrets(userID uint, purpose string, now time.Time) error {
	return s.tokenRepo.InvalidateActiveByUserPurpose(userID, purpose, now)
}
