package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/http/response"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/service"
)

const maxAvatarUploadBytes = 5 << 20

type UserHandler struct {
	userSvc *service.UserService
}

func NewUserHandler(userSvc *service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// List is admin only, enforced by the router.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	result, err := h.userSvc.ListPaged(repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"users":      result.Items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"total":      result.Total,
		"totalPages": result.TotalPages,
	})
}

// ListByDepartment is the department directory. The scope middleware limits
// it to admins and students of that department.
func (h *UserHandler) ListByDepartment(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	result, err := h.userSvc.ListByDepartment(department, repository.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"users":      result.Items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"total":      result.Total,
		"totalPages": result.TotalPages,
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid user id", nil)
		return
	}
	user, err := h.userSvc.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	if err := r.ParseMultipartForm(maxAvatarUploadBytes); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "avatar file is required", nil)
		return
	}
	defer file.Close()

	url, err := h.userSvc.UploadAvatar(r.Context(), subject.ID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		observability.RecordAvatarEvent(r.Context(), "upload", "failure")
		writeStorageError(w, r, err)
		return
	}
	observability.Audit(r, "user.avatar.uploaded", "user_id", subject.ID)
	observability.RecordAvatarEvent(r.Context(), "upload", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"avatarUrl": url})
}

func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoToken, "not authorized to access this route", nil)
		return
	}
	if err := h.userSvc.DeleteAvatar(r.Context(), subject.ID); err != nil {
		observability.RecordAvatarEvent(r.Context(), "delete", "failure")
		writeStorageError(w, r, err)
		return
	}
	observability.Audit(r, "user.avatar.deleted", "user_id", subject.ID)
	observability.RecordAvatarEvent(r.Context(), "delete", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{"data": map[string]any{}})
}

func writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrFileTooBig), errors.Is(err, service.ErrInvalidFileType):
		response.Error(w, r, http.StatusBadRequest, response.CodeValidationFailed, err.Error(), nil)
	case errors.Is(err, service.ErrUnauthorizedObject):
		response.Error(w, r, http.StatusForbidden, response.CodeNotOwner, err.Error(), nil)
	case errors.Is(err, repository.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "user not found", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "something went wrong", nil)
	}
}
