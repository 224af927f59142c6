package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/opencode-ai/mcp-claude-code/internal/command"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
	"github.com/opencode-ai/mcp-claude-code/pkg/mcpserver"
)

type testServer struct {
	*Server
	dir  string
	gate *permission.Gate
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}

	gate := permission.New()
	if err := gate.AddAllowedPath(dir); err != nil {
		t.Fatalf("AddAllowedPath: %v", err)
	}
	registry := tool.DefaultRegistry(gate, command.NewExecutor(gate), dir)
	mcp := mcpserver.NewServer(registry, mcpserver.Options{Name: "test-server"})

	return &testServer{
		Server: New(DefaultConfig(), "test-server", mcp, registry, gate),
		dir:    dir,
		gate:   gate,
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do("GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if health.Status != "ok" || health.Name != "test-server" {
		t.Errorf("Unexpected health response: %+v", health)
	}
	if health.Tools != len(srv.tools.IDs()) {
		t.Errorf("Expected %d tools, got %d", len(srv.tools.IDs()), health.Tools)
	}
}

func TestListTools(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do("GET", "/tools", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var tools []ToolInfo
	if err := json.NewDecoder(w.Body).Decode(&tools); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	names := make(map[string]bool)
	for _, info := range tools {
		names[info.Name] = true
		if !json.Valid(info.Parameters) {
			t.Errorf("tool %s has invalid parameters", info.Name)
		}
	}
	for _, want := range []string{"read_files", "run_command", "script_tool"} {
		if !names[want] {
			t.Errorf("Expected tool %s in list", want)
		}
	}
}

func TestGetPermissions(t *testing.T) {
	srv := setupTestServer(t)

	w := srv.do("GET", "/permissions/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap permission.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(snap.AllowedPaths) != 1 || snap.AllowedPaths[0] != srv.dir {
		t.Errorf("Expected allowed path %s, got %v", srv.dir, snap.AllowedPaths)
	}
}

func TestApproveOperation(t *testing.T) {
	srv := setupTestServer(t)
	target := filepath.Join(srv.dir, "notes.txt")

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing fields", ApproveRequest{Path: target}, http.StatusBadRequest},
		{"unknown operation", ApproveRequest{Path: target, Operation: "delete"}, http.StatusBadRequest},
		{"outside allowed", ApproveRequest{Path: "/etc/hosts", Operation: "read"}, http.StatusForbidden},
		{"excluded", ApproveRequest{Path: filepath.Join(srv.dir, ".env"), Operation: "edit"}, http.StatusForbidden},
		{"approved", ApproveRequest{Path: target, Operation: " Write "}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do("POST", "/permissions/approve", tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}

	if !srv.gate.IsOperationApproved(target, permission.OpWrite) {
		t.Error("Expected write to be approved")
	}
}

func TestApproveOperation_InvalidJSON(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/permissions/approve", bytes.NewReader([]byte("invalid json")))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/message", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Expected CORS headers on preflight response")
	}
}
