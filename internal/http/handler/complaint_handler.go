package handler

import (
	"errors"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/service"
)

type ComplaintHandler struct {
	svc *service.ComplaintService
}

func NewComplaintHandler(svc *service.ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{svc: svc}
}

type complaintPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

func (p complaintPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Description, validation.Required),
		validation.Field(&p.Category, validation.Required, validation.Length(1, 64)),
		validation.Field(&p.Priority, validation.In("", "low", "medium", "high", "urgent")),
	)
}

type complaintStatusPayload struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (p complaintStatusPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Status, validation.Required,
			validation.In("pending", "acknowledged", "in-progress", "resolved", "closed", "rejected")),
		validation.Field(&p.Note, validation.Length(0, 1000)),
	)
}

// Create files a complaint for the authenticated student against their own
// hostel room.
func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	var p complaintPayload
	if !decodeAndValidateBody(w, r, &p) {
		return
	}
	view, err := h.svc.Create(subject, service.ComplaintInput{
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Priority:    domain.ComplaintPriority(p.Priority),
	})
	if err != nil {
		observability.RecordComplaintEvent(r.Context(), "create", "failure")
		writeComplaintError(w, r, err)
		return
	}
	observability.Audit(r, "complaint.created", "complaint_id", view.ID, "user_id", subject.ID)
	observability.RecordComplaintEvent(r.Context(), "create", "success")
	response.JSON(w, r, http.StatusCreated, map[string]any{"complaint": view})
}

// List returns the caller's own complaints; admins can filter across all
// reporters.
func (h *ComplaintHandler) List(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}

	q := r.URL.Query()
	filter := repository.ComplaintFilter{
		Status:      domain.ComplaintStatus(q.Get("status")),
		Priority:    domain.ComplaintPriority(q.Get("priority")),
		Category:    q.Get("category"),
		HostelBlock: q.Get("hostelBlock"),
	}
	if subject.IsAdmin() {
		if rid, err := strconv.ParseUint(q.Get("reporterId"), 10, 64); err == nil {
			filter.ReporterID = uint(rid)
		}
	} else {
		// students only ever see their own complaints
		filter.ReporterID = subject.ID
	}

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	result, err := h.svc.List(filter, repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"complaints": result.Items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"total":      result.Total,
		"totalPages": result.TotalPages,
	})
}

// ListByHostel returns complaints filed against rooms in the given block. The
// scope middleware limits it to admins and residents of that block.
func (h *ComplaintHandler) ListByHostel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ComplaintFilter{
		Status:      domain.ComplaintStatus(q.Get("status")),
		Priority:    domain.ComplaintPriority(q.Get("priority")),
		HostelBlock: chi.URLParam(r, "block"),
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	result, err := h.svc.List(filter, repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"complaints": result.Items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"total":      result.Total,
		"totalPages": result.TotalPages,
	})
}

func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid complaint id", nil)
		return
	}
	view, err := h.svc.Get(uint(id))
	if err != nil {
		writeComplaintError(w, r, err)
		return
	}
	if !subject.IsAdmin() && view.ReporterID != subject.ID {
		response.Error(w, r, http.StatusForbidden, response.CodeNotOwner, "not the owner of this resource", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"complaint": view})
}

// UpdateStatus is admin only, enforced by the router.
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid complaint id", nil)
		return
	}
	var p complaintStatusPayload
	if !decodeAndValidateBody(w, r, &p) {
		return
	}
	view, err := h.svc.UpdateStatus(r.Context(), uint(id), subject.ID, domain.ComplaintStatus(p.Status), p.Note)
	if err != nil {
		observability.RecordComplaintEvent(r.Context(), "status_update", "failure")
		writeComplaintError(w, r, err)
		return
	}
	observability.Audit(r, "complaint.status.updated", "complaint_id", view.ID, "status", p.Status, "user_id", subject.ID)
	observability.RecordComplaintEvent(r.Context(), "status_update", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"complaint": view})
}

// ListEscalations surfaces open complaints that have outlived their
// escalation threshold. Admin only.
func (h *ComplaintHandler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListEscalations()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"complaints": views, "count": len(views)})
}

func writeComplaintError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrComplaintNotFound):
		response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "complaint not found", nil)
	case errors.Is(err, service.ErrComplaintClosed):
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
	}
}
