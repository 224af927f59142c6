package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

var approvableOperations = []string{
	permission.OpRead,
	permission.OpWrite,
	permission.OpEdit,
	permission.OpExecute,
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	Tools  int    `json:"tools"`
}

// ToolInfo describes one tool in GET /tools.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ApproveRequest is the body of POST /permissions/approve.
type ApproveRequest struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Name:   s.name,
		Tools:  len(s.tools.IDs()),
	})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	list := s.tools.List()
	infos := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		infos = append(infos, ToolInfo{
			Name:        t.ID(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) getPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gate.Snapshot())
}

func (s *Server) approveOperation(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	req.Operation = strings.ToLower(strings.TrimSpace(req.Operation))
	if req.Path == "" || req.Operation == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "path and operation are required", nil)
		return
	}
	if !slices.Contains(approvableOperations, req.Operation) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown operation",
			map[string]any{"operations": approvableOperations})
		return
	}
	// Read access is the baseline: the path must be allowed and not excluded.
	if err := s.gate.Authorize(req.Path, permission.OpRead); err != nil {
		writeDenied(w, err)
		return
	}

	s.gate.ApproveOperation(req.Path, req.Operation)
	writeSuccess(w)
}
