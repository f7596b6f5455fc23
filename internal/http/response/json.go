package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes shared across handlers and middleware.
const (
	CodeNoToken               = "NO_TOKEN"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeExpiredToken          = "EXPIRED_TOKEN"
	CodeSubjectNotFound       = "SUBJECT_NOT_FOUND"
	CodeAccountDeactivated    = "ACCOUNT_DEACTIVATED"
	CodeRoleDenied            = "ROLE_DENIED"
	CodeNotOwner              = "NOT_OWNER"
	CodeScopeDenied           = "SCOPE_DENIED"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeDuplicate             = "DUPLICATE"
	CodeNotFound              = "NOT_FOUND"
	CodeBadRequest            = "BAD_REQUEST"
	CodeInternal              = "INTERNAL"
)

// JSON writes a success envelope: {"success": true} merged with the given
// fields. Fields named "success" are reserved and overwritten.
func JSON(w http.ResponseWriter, r *http.Request, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	write(w, r, status, body)
}

// Error writes a failure envelope carrying a machine-readable code and a
// human-readable message.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	body := map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	write(w, r, status, body)
}

func write(w http.ResponseWriter, r *http.Request, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "encode response body", "error", err)
	}
}
