package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code. Details holds extra fields
// such as the deny reason or the accepted operations.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

// writeDenied reports a gate refusal as 403 with the deny reason. Other
// errors are internal.
func writeDenied(w http.ResponseWriter, err error) {
	var denied *permission.DeniedError
	if !errors.As(err, &denied) {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
		return
	}
	writeError(w, http.StatusForbidden, ErrCodePermissionDenied, denied.Error(), map[string]any{
		"path":   denied.Path,
		"reason": string(denied.Reason),
	})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
