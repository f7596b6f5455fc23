package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

var ErrIncompleteStudentProfile = errors.New("student accounts require a student id and a complete profile")

// User is the credential store's core identity record. The password hash
// lives in Credential and is never embedded here, so any serialization of a
// User is structurally incapable of leaking it.
type User struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Email         string          `gorm:"uniqueIndex;size:255;not null" json:"email"`
	StudentID     *string         `gorm:"uniqueIndex;size:32" json:"studentId,omitempty"`
	FirstName     string          `gorm:"size:50;not null" json:"firstName"`
	LastName      string          `gorm:"size:50;not null" json:"lastName"`
	Role          Role            `gorm:"size:16;not null;default:student;index:idx_users_role" json:"role"`
	PhoneNumber   string          `gorm:"size:16" json:"phoneNumber,omitempty"`
	AvatarKey     string          `gorm:"size:1024" json:"-"`
	IsActive      bool            `gorm:"not null;default:true" json:"isActive"`
	EmailVerified bool            `gorm:"not null;default:false" json:"emailVerified"`
	LastLogin     *time.Time      `json:"lastLogin,omitempty"`
	Profile       *StudentProfile `gorm:"constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// StudentProfile carries the attributes that only exist for student accounts.
// Modeling them as a separate record keeps "required iff role=student" out of
// the flat User schema: admins simply have no profile row.
type StudentProfile struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"-"`
	Department  string    `gorm:"size:100;not null;index:idx_student_profiles_department" json:"department"`
	Year        int       `gorm:"not null" json:"year"`
	HostelBlock string    `gorm:"size:32;not null;index:idx_student_profiles_hostel" json:"hostelBlock"`
	RoomNumber  string    `gorm:"size:16;not null" json:"roomNumber"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Department returns the subject's department scope, empty for admins.
func (u *User) Department() string {
	if u.Profile == nil {
		return ""
	}
	return u.Profile.Department
}

// HostelBlock returns the subject's hostel scope, empty for admins.
func (u *User) HostelBlock() string {
	if u.Profile == nil {
		return ""
	}
	return u.Profile.HostelBlock
}

// ValidateForRole enforces the role-conditional shape of the record. It is
// called explicitly by every write path instead of hanging off a persistence
// hook, so the rule is visible where the write happens.
func (u *User) ValidateForRole() error {
	switch u.Role {
	case RoleAdmin:
		return nil
	case RoleStudent:
		if u.StudentID == nil || strings.TrimSpace(*u.StudentID) == "" {
			return ErrIncompleteStudentProfile
		}
		p := u.Profile
		if p == nil || p.Department == "" || p.HostelBlock == "" || p.RoomNumber == "" {
			return ErrIncompleteStudentProfile
		}
		if p.Year < 1 || p.Year > 4 {
			return fmt.Errorf("%w: year must be between 1 and 4", ErrIncompleteStudentProfile)
		}
		return nil
	default:
		return fmt.Errorf("unknown role %q", u.Role)
	}
}
