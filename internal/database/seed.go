package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/security"

	"gorm.io/gorm"
)

type SeedReport struct {
	CreatedAdmin     bool `json:"created_admin"`
	PromotedExisting bool `json:"promoted_existing"`
	Noop             bool `json:"noop"`
}

func Seed(db *gorm.DB, adminEmail, adminPassword string) error {
	_, err := SeedSync(db, adminEmail, adminPassword)
	return err
}

// SeedSync provisions the bootstrap admin account. An existing account with
// the configured email is promoted to admin instead of duplicated; its
// password is left untouched.
func SeedSync(db *gorm.DB, adminEmail, adminPassword string) (*SeedReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()

	report := &SeedReport{}

	email := strings.TrimSpace(strings.ToLower(adminEmail))
	if email == "" {
		report.Noop = true
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
		return report, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing domain.User
		err := tx.Where("email = ?", email).First(&existing).Error
		if err == nil {
			if existing.Role != domain.RoleAdmin {
				if err := tx.Model(&existing).Update("role", domain.RoleAdmin).Error; err != nil {
					return fmt.Errorf("promote bootstrap admin: %w", err)
				}
				report.PromotedExisting = true
			}
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		hash, err := security.HashPassword(adminPassword)
		if err != nil {
			return fmt.Errorf("hash bootstrap admin password: %w", err)
		}
		admin := domain.User{
			Email:         email,
			FirstName:     "Campus",
			LastName:      "Admin",
			Role:          domain.RoleAdmin,
			IsActive:      true,
			EmailVerified: true,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("create bootstrap admin: %w", err)
		}
		if err := tx.Create(&domain.Credential{UserID: admin.ID, PasswordHash: hash}).Error; err != nil {
			return fmt.Errorf("create bootstrap admin credential: %w", err)
		}
		report.CreatedAdmin = true
		return nil
	})
	if err != nil {
		observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
		return nil, err
	}

	report.Noop = !report.CreatedAdmin && !report.PromotedExisting
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
	return report, nil
}

// VerifyEmail flips a user's email_verified flag directly. Intended for the
// ops CLI in environments without a mail relay.
func VerifyEmail(db *gorm.DB, email string) error {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" {
		return fmt.Errorf("email is required")
	}
	tx := db.Model(&domain.User{}).Where("email = ?", normalized).
		Update("email_verified", true)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
