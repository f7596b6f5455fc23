package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
)

func TestComplaintRepositoryLifecycle(t *testing.T) {
	db := newRepositoryDBForTest(t)
	users := NewUserRepository(db)
	repo := NewComplaintRepository(db)

	reporter := newStudentForTest(1)
	if err := users.Create(reporter); err != nil {
		t.Fatalf("create reporter: %v", err)
	}

	c := &domain.Complaint{
		Title:       "Broken fan",
		Description: "Ceiling fan not working",
		Category:    "electrical",
		Priority:    domain.PriorityHigh,
		Status:      domain.ComplaintPending,
		ReporterID:  reporter.ID,
		HostelBlock: "A",
		RoomNumber:  "101",
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	if err := c.ApplyStatus(domain.ComplaintAcknowledged, reporter.ID, "seen", now); err != nil {
		t.Fatalf("apply status: %v", err)
	}
	if err := repo.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := repo.FindByID(c.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.Status != domain.ComplaintAcknowledged {
		t.Fatalf("status not persisted: %s", loaded.Status)
	}
	if len(loaded.StatusHistory) != 1 || loaded.StatusHistory[0].Note != "seen" {
		t.Fatalf("status history not persisted: %+v", loaded.StatusHistory)
	}
	if loaded.Reporter == nil || loaded.Reporter.ID != reporter.ID {
		t.Fatal("reporter not preloaded")
	}

	if _, err := repo.FindByID(999); !errors.Is(err, ErrComplaintNotFound) {
		t.Fatalf("expected ErrComplaintNotFound, got %v", err)
	}
}

func TestComplaintRepositoryFiltersAndOpenList(t *testing.T) {
	db := newRepositoryDBForTest(t)
	users := NewUserRepository(db)
	repo := NewComplaintRepository(db)

	r1 := newStudentForTest(1)
	r2 := newStudentForTest(2)
	for _, u := range []*domain.User{r1, r2} {
		if err := users.Create(u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	seed := []*domain.Complaint{
		{Title: "c1", Description: "d", Category: "electrical", Priority: domain.PriorityHigh, Status: domain.ComplaintPending, ReporterID: r1.ID, HostelBlock: "A", RoomNumber: "101"},
		{Title: "c2", Description: "d", Category: "plumbing", Priority: domain.PriorityLow, Status: domain.ComplaintResolved, ReporterID: r1.ID, HostelBlock: "A", RoomNumber: "101"},
		{Title: "c3", Description: "d", Category: "electrical", Priority: domain.PriorityUrgent, Status: domain.ComplaintInProgress, ReporterID: r2.ID, HostelBlock: "B", RoomNumber: "202"},
	}
	for _, c := range seed {
		if err := repo.Create(c); err != nil {
			t.Fatalf("create %q: %v", c.Title, err)
		}
	}

	byReporter, err := repo.ListPaged(ComplaintFilter{ReporterID: r1.ID}, PageRequest{})
	if err != nil {
		t.Fatalf("list by reporter: %v", err)
	}
	if byReporter.Total != 2 {
		t.Fatalf("expected 2 complaints for reporter, got %d", byReporter.Total)
	}

	byCategory, err := repo.ListPaged(ComplaintFilter{Category: "electrical", Status: domain.ComplaintPending}, PageRequest{})
	if err != nil {
		t.Fatalf("list by category+status: %v", err)
	}
	if byCategory.Total != 1 || byCategory.Items[0].Title != "c1" {
		t.Fatalf("unexpected filtered result: %+v", byCategory.Items)
	}

	byHostel, err := repo.ListPaged(ComplaintFilter{HostelBlock: "B"}, PageRequest{})
	if err != nil {
		t.Fatalf("list by hostel: %v", err)
	}
	if byHostel.Total != 1 || byHostel.Items[0].Title != "c3" {
		t.Fatalf("unexpected hostel result: %+v", byHostel.Items)
	}

	open, err := repo.ListOpen()
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open complaints, got %d", len(open))
	}
	if !open[0].CreatedAt.Before(open[1].CreatedAt) && !open[0].CreatedAt.Equal(open[1].CreatedAt) {
		t.Fatal("open complaints should be ordered oldest first")
	}
}
