package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
)

func (h *handlerHarness) fileComplaint(t *testing.T, token, title, priority string) float64 {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/complaints/", token, map[string]any{
		"title":       title,
		"description": "the " + title + " needs attention",
		"category":    "electrical",
		"priority":    priority,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("file complaint: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	c, _ := decodeBody(t, rr)["complaint"].(map[string]any)
	return c["id"].(float64)
}

func TestComplaintCreateInheritsReporterLocation(t *testing.T) {
	h := newHandlerHarness(t)
	student := h.registerStudent(t, 1) // block A, room 101

	rr := h.do(t, http.MethodPost, "/api/complaints/", student.Token, map[string]any{
		"title": "Broken fan", "description": "ceiling fan does not start", "category": "electrical",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	c, _ := decodeBody(t, rr)["complaint"].(map[string]any)
	if c["hostelBlock"] != "A" || c["roomNumber"] != "101" {
		t.Fatalf("complaint did not inherit reporter location: %+v", c)
	}
	if c["priority"] != "medium" {
		t.Fatalf("default priority should be medium, got %v", c["priority"])
	}
	if c["status"] != "pending" {
		t.Fatalf("new complaint should be pending, got %v", c["status"])
	}
	if c["slaCompliant"] != true {
		t.Fatalf("fresh complaint should be inside its SLA window")
	}
}

func TestComplaintCreateRequiresFields(t *testing.T) {
	h := newHandlerHarness(t)
	student := h.registerStudent(t, 1)

	rr := h.do(t, http.MethodPost, "/api/complaints/", student.Token, map[string]any{
		"title": "No description",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["code"] != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", body["code"])
	}
}

func TestComplaintListScopedToReporter(t *testing.T) {
	h := newHandlerHarness(t)
	alice := h.registerStudent(t, 1)
	bob := h.registerStudent(t, 2)
	admin := h.registerAdmin(t)

	h.fileComplaint(t, alice.Token, "leaky tap", "low")
	h.fileComplaint(t, alice.Token, "broken window", "high")
	h.fileComplaint(t, bob.Token, "flickering light", "medium")

	rr := h.do(t, http.MethodGet, "/api/complaints/", alice.Token, nil)
	if body := decodeBody(t, rr); body["total"] != float64(2) {
		t.Fatalf("alice should see her 2 complaints, got %v", body["total"])
	}

	// a student cannot widen the filter to another reporter
	rr = h.do(t, http.MethodGet, fmt.Sprintf("/api/complaints/?reporterId=%d", bob.User.ID), alice.Token, nil)
	if body := decodeBody(t, rr); body["total"] != float64(2) {
		t.Fatalf("reporterId filter must be ignored for students, got %v", body["total"])
	}

	rr = h.do(t, http.MethodGet, "/api/complaints/", admin.Token, nil)
	if body := decodeBody(t, rr); body["total"] != float64(3) {
		t.Fatalf("admin should see all 3 complaints, got %v", body["total"])
	}

	rr = h.do(t, http.MethodGet, fmt.Sprintf("/api/complaints/?reporterId=%d", bob.User.ID), admin.Token, nil)
	if body := decodeBody(t, rr); body["total"] != float64(1) {
		t.Fatalf("admin filtered by reporter should see 1, got %v", body["total"])
	}
}

func TestComplaintGetOwnership(t *testing.T) {
	h := newHandlerHarness(t)
	alice := h.registerStudent(t, 1)
	bob := h.registerStudent(t, 2)
	admin := h.registerAdmin(t)

	id := h.fileComplaint(t, alice.Token, "leaky tap", "low")
	path := fmt.Sprintf("/api/complaints/%.0f", id)

	rr := h.do(t, http.MethodGet, path, alice.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner get: expected 200, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, path, bob.Token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-owner get: expected 403, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["code"] != "NOT_OWNER" {
		t.Fatalf("expected NOT_OWNER, got %v", body["code"])
	}

	rr = h.do(t, http.MethodGet, path, admin.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin get: expected 200, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/api/complaints/424242", admin.Token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", rr.Code)
	}
}

func TestComplaintStatusUpdate(t *testing.T) {
	h := newHandlerHarness(t)
	student := h.registerStudent(t, 1)
	admin := h.registerAdmin(t)

	id := h.fileComplaint(t, student.Token, "broken window", "high")
	path := fmt.Sprintf("/api/complaints/%.0f/status", id)

	rr := h.do(t, http.MethodPut, path, student.Token, map[string]any{"status": "resolved"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("student status update: expected 403, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPut, path, admin.Token, map[string]any{"status": "not-a-status"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPut, path, admin.Token, map[string]any{
		"status": "resolved", "note": "glazier replaced the pane",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	c, _ := decodeBody(t, rr)["complaint"].(map[string]any)
	if c["status"] != "resolved" {
		t.Fatalf("status not applied: %v", c["status"])
	}
	if c["resolvedAt"] == nil {
		t.Fatal("resolved complaint must carry resolvedAt")
	}
	history, _ := c["statusHistory"].([]any)
	if len(history) == 0 {
		t.Fatal("status change must be recorded in the history")
	}

	// closed complaints are immutable
	rr = h.do(t, http.MethodPut, path, admin.Token, map[string]any{"status": "closed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	rr = h.do(t, http.MethodPut, path, admin.Token, map[string]any{"status": "pending"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reopen closed: expected 400, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["code"] != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST, got %v", body["code"])
	}
}

func TestComplaintEscalationsEndpoint(t *testing.T) {
	h := newHandlerHarness(t)
	student := h.registerStudent(t, 1)
	admin := h.registerAdmin(t)

	id := h.fileComplaint(t, student.Token, "sparking socket", "urgent")

	rr := h.do(t, http.MethodGet, "/api/complaints/escalations", student.Token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("student escalations: expected 403, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/api/complaints/escalations", admin.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["count"] != float64(0) {
		t.Fatalf("fresh complaint must not need escalation, got %v", body["count"])
	}

	// age the complaint past the urgent escalation threshold
	aged := time.Now().UTC().Add(-3 * time.Hour)
	if err := h.db.Model(&domain.Complaint{}).Where("id = ?", uint(id)).Update("created_at", aged).Error; err != nil {
		t.Fatalf("age complaint: %v", err)
	}

	rr = h.do(t, http.MethodGet, "/api/complaints/escalations", admin.Token, nil)
	body := decodeBody(t, rr)
	if body["count"] != float64(1) {
		t.Fatalf("aged urgent complaint should need escalation, got %v", body["count"])
	}
	complaints, _ := body["complaints"].([]any)
	first, _ := complaints[0].(map[string]any)
	if first["needsEscalation"] != true {
		t.Fatalf("escalation flag not set: %+v", first)
	}
}

func TestComplaintHostelBlockListing(t *testing.T) {
	h := newHandlerHarness(t)
	alice := h.registerStudent(t, 1) // block A
	bob := h.registerStudentIn(t, "bob@campus.edu", "STU8001", "Computer Science", "B")
	admin := h.registerAdmin(t)

	h.fileComplaint(t, alice.Token, "leaky tap", "low")
	h.fileComplaint(t, bob.Token, "broken heater", "high")

	rr := h.do(t, http.MethodGet, "/api/complaints/hostel/A", alice.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("own block: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["total"] != float64(1) {
		t.Fatalf("block A has 1 complaint, got %v", body["total"])
	}

	rr = h.do(t, http.MethodGet, "/api/complaints/hostel/B", alice.Token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign block: expected 403, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["code"] != "SCOPE_DENIED" {
		t.Fatalf("expected SCOPE_DENIED, got %v", body["code"])
	}

	rr = h.do(t, http.MethodGet, "/api/complaints/hostel/B", admin.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["total"] != float64(1) {
		t.Fatalf("block B has 1 complaint, got %v", body["total"])
	}
}
