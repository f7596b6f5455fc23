package domain

import "time"

type AnnouncementCategory string

const (
	AnnouncementEvent    AnnouncementCategory = "event"
	AnnouncementExam     AnnouncementCategory = "exam"
	AnnouncementHoliday  AnnouncementCategory = "holiday"
	AnnouncementAcademic AnnouncementCategory = "academic"
	AnnouncementHostel   AnnouncementCategory = "hostel"
	AnnouncementGeneral  AnnouncementCategory = "general"
	AnnouncementUrgent   AnnouncementCategory = "urgent"
)

type Announcement struct {
	ID                uint                 `gorm:"primaryKey" json:"id"`
	Title             string               `gorm:"size:200;not null" json:"title"`
	Content           string               `gorm:"size:2000;not null" json:"content"`
	Category          AnnouncementCategory `gorm:"size:32;not null;default:general;index:idx_announcements_category" json:"category"`
	AuthorID          uint                 `gorm:"not null;index:idx_announcements_author" json:"authorId"`
	Author            *User                `json:"author,omitempty"`
	Pinned            bool                 `gorm:"not null;default:false" json:"pinned"`
	IsActive          bool                 `gorm:"not null;default:true" json:"isActive"`
	IsGlobal          bool                 `gorm:"not null;default:true" json:"isGlobal"`
	TargetDepartments []string             `gorm:"serializer:json" json:"targetDepartments,omitempty"`
	TargetYears       []int                `gorm:"serializer:json" json:"targetYears,omitempty"`
	PublishAt         time.Time            `json:"publishAt"`
	ExpiresAt         *time.Time           `json:"expiresAt,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// EnforcePublicationInvariants normalizes the publication state before a
// write. Expired announcements are deactivated and unpinned; a zero PublishAt
// means publish immediately. Write paths call this deliberately rather than
// relying on storage-layer save hooks.
func (a *Announcement) EnforcePublicationInvariants(now time.Time) {
	if a.PublishAt.IsZero() {
		a.PublishAt = now
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		a.IsActive = false
		a.Pinned = false
	}
	if !a.IsActive {
		a.Pinned = false
	}
}

// VisibleAt reports whether the announcement is live at the given instant.
func (a *Announcement) VisibleAt(now time.Time) bool {
	if !a.IsActive || a.PublishAt.After(now) {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// TargetsUser reports whether the announcement applies to the given subject.
// Global announcements reach everyone; targeted ones match the student's
// department or year. Unauthenticated readers only see global announcements.
func (a *Announcement) TargetsUser(u *User) bool {
	if a.IsGlobal {
		return true
	}
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	if u.Profile == nil {
		return false
	}
	for _, d := range a.TargetDepartments {
		if d == u.Profile.Department {
			return true
		}
	}
	for _, y := range a.TargetYears {
		if y == u.Profile.Year {
			return true
		}
	}
	return false
}
