package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/service"
)

type AnnouncementHandler struct {
	svc *service.AnnouncementService
}

func NewAnnouncementHandler(svc *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{svc: svc}
}

type announcementPayload struct {
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	Category          string     `json:"category"`
	Pinned            bool       `json:"pinned"`
	IsGlobal          bool       `json:"isGlobal"`
	TargetDepartments []string   `json:"targetDepartments"`
	TargetYears       []int      `json:"targetYears"`
	PublishAt         *time.Time `json:"publishAt"`
	ExpiresAt         *time.Time `json:"expiresAt"`
}

func (p announcementPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Content, validation.Required),
		validation.Field(&p.Category, validation.In("", "event", "exam", "holiday", "academic", "hostel", "general", "urgent")),
	)
}

func (p announcementPayload) toInput() service.AnnouncementInput {
	in := service.AnnouncementInput{
		Title:             p.Title,
		Content:           p.Content,
		Category:          domain.AnnouncementCategory(p.Category),
		Pinned:            p.Pinned,
		IsGlobal:          p.IsGlobal,
		TargetDepartments: p.TargetDepartments,
		TargetYears:       p.TargetYears,
		ExpiresAt:         p.ExpiresAt,
	}
	if p.PublishAt != nil {
		in.PublishAt = *p.PublishAt
	}
	return in
}

// List answers with the announcements visible to the caller; anonymous
// readers see only global items.
func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())
	items, err := h.svc.ListFor(subject)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"announcements": items, "count": len(items)})
}

// ListAll is the admin view: everything, deactivated included, paged.
func (h *AnnouncementHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	result, err := h.svc.ListPaged(repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"announcements": result.Items,
		"page":          result.Page,
		"pageSize":      result.PageSize,
		"total":         result.Total,
		"totalPages":    result.TotalPages,
	})
}

func (h *AnnouncementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid announcement id", nil)
		return
	}
	a, err := h.svc.Get(uint(id))
	if err != nil {
		writeAnnouncementError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"announcement": a})
}

func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	var p announcementPayload
	if !decodeAndValidateBody(w, r, &p) {
		return
	}
	a, err := h.svc.Create(subject.ID, p.toInput())
	if err != nil {
		observability.RecordAnnouncementEvent(r.Context(), "create", "failure")
		writeAnnouncementError(w, r, err)
		return
	}
	observability.Audit(r, "announcement.created", "announcement_id", a.ID, "user_id", subject.ID)
	observability.RecordAnnouncementEvent(r.Context(), "create", "success")
	response.JSON(w, r, http.StatusCreated, map[string]any{"announcement": a})
}

func (h *AnnouncementHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid announcement id", nil)
		return
	}
	var p announcementPayload
	if !decodeAndValidateBody(w, r, &p) {
		return
	}
	a, err := h.svc.Update(uint(id), p.toInput())
	if err != nil {
		observability.RecordAnnouncementEvent(r.Context(), "update", "failure")
		writeAnnouncementError(w, r, err)
		return
	}
	observability.Audit(r, "announcement.updated", "announcement_id", a.ID)
	observability.RecordAnnouncementEvent(r.Context(), "update", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"announcement": a})
}

func (h *AnnouncementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid announcement id", nil)
		return
	}
	if err := h.svc.Delete(uint(id)); err != nil {
		observability.RecordAnnouncementEvent(r.Context(), "delete", "failure")
		writeAnnouncementError(w, r, err)
		return
	}
	observability.Audit(r, "announcement.deleted", "announcement_id", id)
	observability.RecordAnnouncementEvent(r.Context(), "delete", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"data": map[string]any{}})
}

func writeAnnouncementError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrAnnouncementNotFound):
		response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "announcement not found", nil)
	case errors.Is(err, service.ErrTooManyPinned):
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
	}
}

// decodeAndValidateBody is the status-less variant of decodeAndValidate for
// handlers that do not time their requests.
func decodeAndValidateBody(w http.ResponseWriter, r *http.Request, p validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid request body", nil)
		return false
	}
	if err := p.Validate(); err != nil {
		var details any
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			details = fieldErrs
		}
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, "validation failed", details)
		return false
	}
	return true
}
