package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/repository"
)

var ErrComplaintClosed = errors.New("complaint is already closed")

type ComplaintService struct {
	repo     repository.ComplaintRepository
	userRepo repository.UserRepository
	notifier EmailNotifier
	logger   *slog.Logger
}

func NewComplaintService(repo repository.ComplaintRepository, userRepo repository.UserRepository, notifier EmailNotifier, logger *slog.Logger) *ComplaintService {
	return &ComplaintService{repo: repo, userRepo: userRepo, notifier: notifier, logger: logger}
}

type ComplaintInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.ComplaintPriority
}

// ComplaintView decorates a complaint with its derived SLA state.
type ComplaintView struct {
	domain.Complaint
	SLACompliant    bool `json:"slaCompliant"`
	NeedsEscalation bool `json:"needsEscalation"`
}

func (s *ComplaintService) viewOf(c domain.Complaint, now time.Time) ComplaintView {
	return ComplaintView{
		Complaint:       c,
		SLACompliant:    c.SLACompliant(now),
		NeedsEscalation: c.NeedsEscalation(now),
	}
}

// Create files a complaint against the reporter's own hostel room.
func (s *ComplaintService) Create(reporter *domain.User, in ComplaintInput) (*ComplaintView, error) {
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	c := &domain.Complaint{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Priority:    priority,
		Status:      domain.ComplaintPending,
		ReporterID:  reporter.ID,
		HostelBlock: reporter.HostelBlock(),
	}
	if reporter.Profile != nil {
		c.RoomNumber = reporter.Profile.RoomNumber
	}
	if err := s.repo.Create(c); err != nil {
		return nil, err
	}
	v := s.viewOf(*c, time.Now().UTC())
	return &v, nil
}

func (s *ComplaintService) Get(id uint) (*ComplaintView, error) {
	c, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	v := s.viewOf(*c, time.Now().UTC())
	return &v, nil
}

func (s *ComplaintService) List(filter repository.ComplaintFilter, req repository.PageRequest) (*repository.PageResult[ComplaintView], error) {
	page, err := s.repo.ListPaged(filter, req)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	views := make([]ComplaintView, 0, len(page.Items))
	for _, c := range page.Items {
		views = append(views, s.viewOf(c, now))
	}
	return &repository.PageResult[ComplaintView]{
		Items:      views,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}, nil
}

// UpdateStatus applies an admin status transition, records it in the history
// and notifies the reporter. The notification is best effort.
func (s *ComplaintService) UpdateStatus(ctx context.Context, id, changedBy uint, status domain.ComplaintStatus, note string) (*ComplaintView, error) {
	c, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.ComplaintClosed {
		return nil, ErrComplaintClosed
	}
	now := time.Now().UTC()
	if err := c.ApplyStatus(status, changedBy, note, now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(c); err != nil {
		return nil, err
	}

	if reporter, err := s.userRepo.FindByID(c.ReporterID); err == nil {
		go func() {
			if err := s.notifier.SendComplaintUpdate(context.Background(), ComplaintUpdateNotification{
				Email:          reporter.Email,
				Name:           reporter.FullName(),
				ComplaintID:    c.ID,
				ComplaintTitle: c.Title,
				Status:         string(status),
				Note:           note,
			}); err != nil {
				s.logger.Warn("complaint update email failed", "complaint_id", c.ID, "error", err)
			}
		}()
	}

	v := s.viewOf(*c, now)
	return &v, nil
}

// ListEscalations returns open complaints that have sat past their
// priority's escalation threshold.
func (s *ComplaintService) ListEscalations() ([]ComplaintView, error) {
	open, err := s.repo.ListOpen()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]ComplaintView, 0)
	for _, c := range open {
		if c.NeedsEscalation(now) {
			out = append(out, s.viewOf(c, now))
		}
	}
	return out, nil
}
