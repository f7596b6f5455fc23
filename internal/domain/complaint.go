package domain

import (
	"fmt"
	"time"
)

type ComplaintStatus string

const (
	ComplaintPending      ComplaintStatus = "pending"
	ComplaintAcknowledged ComplaintStatus = "acknowledged"
	ComplaintInProgress   ComplaintStatus = "in-progress"
	ComplaintResolved     ComplaintStatus = "resolved"
	ComplaintClosed       ComplaintStatus = "closed"
	ComplaintRejected     ComplaintStatus = "rejected"
)

type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
	PriorityUrgent ComplaintPriority = "urgent"
)

type Complaint struct {
	ID            uint                    `gorm:"primaryKey" json:"id"`
	Title         string                  `gorm:"size:200;not null" json:"title"`
	Description   string                  `gorm:"size:2000;not null" json:"description"`
	Category      string                  `gorm:"size:32;not null;index:idx_complaints_category" json:"category"`
	Priority      ComplaintPriority       `gorm:"size:16;not null;default:medium" json:"priority"`
	Status        ComplaintStatus         `gorm:"size:16;not null;default:pending;index:idx_complaints_status" json:"status"`
	ReporterID    uint                    `gorm:"not null;index:idx_complaints_reporter" json:"reporterId"`
	Reporter      *User                   `json:"reporter,omitempty"`
	HostelBlock   string                  `gorm:"size:32;not null;index:idx_complaints_hostel" json:"hostelBlock"`
	RoomNumber    string                  `gorm:"size:16;not null" json:"roomNumber"`
	AssignedTo    *uint                   `json:"assignedTo,omitempty"`
	StatusHistory []ComplaintStatusChange `gorm:"constraint:OnDelete:CASCADE" json:"statusHistory,omitempty"`
	ResolvedAt    *time.Time              `json:"resolvedAt,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

type ComplaintStatusChange struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ComplaintID uint            `gorm:"not null;index:idx_status_changes_complaint" json:"-"`
	Status      ComplaintStatus `gorm:"size:16;not null" json:"status"`
	Note        string          `gorm:"size:500" json:"note,omitempty"`
	ChangedBy   uint            `gorm:"not null" json:"changedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Hours until a complaint of the given priority breaches its SLA.
var slaHours = map[ComplaintPriority]int{
	PriorityUrgent: 4,
	PriorityHigh:   24,
	PriorityMedium: 72,
	PriorityLow:    168,
}

// Hours after which an unresolved complaint should be escalated.
var escalationHours = map[ComplaintPriority]int{
	PriorityUrgent: 2,
	PriorityHigh:   12,
	PriorityMedium: 48,
	PriorityLow:    120,
}

func (c *Complaint) open() bool {
	return c.Status != ComplaintResolved && c.Status != ComplaintClosed
}

// SLACompliant reports whether the complaint is still inside its SLA window
// (or, once resolved, whether it was resolved inside it).
func (c *Complaint) SLACompliant(now time.Time) bool {
	hours, ok := slaHours[c.Priority]
	if !ok {
		hours = 72
	}
	deadline := c.CreatedAt.Add(time.Duration(hours) * time.Hour)
	if !c.open() && c.ResolvedAt != nil {
		return !c.ResolvedAt.After(deadline)
	}
	return !now.After(deadline)
}

// NeedsEscalation reports whether the complaint has sat unresolved past its
// priority's escalation threshold.
func (c *Complaint) NeedsEscalation(now time.Time) bool {
	if !c.open() {
		return false
	}
	hours, ok := escalationHours[c.Priority]
	if !ok {
		hours = 48
	}
	return now.After(c.CreatedAt.Add(time.Duration(hours) * time.Hour))
}

// ApplyStatus records a transition in the history and updates the current
// status; resolved transitions stamp ResolvedAt.
func (c *Complaint) ApplyStatus(status ComplaintStatus, changedBy uint, note string, now time.Time) error {
	switch status {
	case ComplaintPending, ComplaintAcknowledged, ComplaintInProgress, ComplaintResolved, ComplaintClosed, ComplaintRejected:
	default:
		return fmt.Errorf("invalid complaint status %q", status)
	}
	c.StatusHistory = append(c.StatusHistory, ComplaintStatusChange{
		ComplaintID: c.ID,
		Status:      status,
		Note:        note,
		ChangedBy:   changedBy,
		CreatedAt:   now,
	})
	c.Status = status
	if status == ComplaintResolved {
		t := now
		c.ResolvedAt = &t
	}
	return nil
}
