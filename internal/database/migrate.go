package database

import (
	"github.com/campuslink/campuslink-server/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.StudentProfile{},
		&domain.Credential{},
		&domain.VerificationToken{},
		&domain.Announcement{},
		&domain.Complaint{},
		&domain.ComplaintStatusChange{},
	)
}
