package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/mcp-claude-code/internal/config"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/storage"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

func testConfig(t *testing.T) (*types.Config, string) {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	cfg := config.Default()
	cfg.AllowedPaths = []string{dir}
	return cfg, dir
}

func TestNewGate(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Permission = &types.PermissionConfig{
		ExcludedPaths:    []string{filepath.Join(dir, "private")},
		ExcludedPatterns: []string{"*.pem"},
		OperationTimeout: 10,
		RequireApproval:  []string{permission.OpWrite},
	}

	gate, err := newGate(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{dir}, gate.AllowedPaths())
	assert.True(t, gate.IsPathAllowed(filepath.Join(dir, "main.go")))
	assert.False(t, gate.IsPathAllowed(filepath.Join(dir, "private", "notes.txt")))
	assert.False(t, gate.IsPathAllowed(filepath.Join(dir, "server.pem")))
	assert.True(t, gate.NeedsApproval(permission.OpWrite))
	assert.False(t, gate.NeedsApproval(permission.OpRead))
}

func TestNewApp(t *testing.T) {
	cfg, dir := testConfig(t)

	a, err := newApp(context.Background(), cfg, dir)
	require.NoError(t, err)

	_, ok := a.tools.Get(tool.DispatchToolID)
	assert.True(t, ok, "dispatch_agent must be exposed over MCP")
	assert.NotContains(t, a.agents.Tools().IDs(), tool.DispatchToolID)
	assert.Contains(t, a.agents.Tools().IDs(), "run_command")
	assert.Nil(t, a.store)
}

func TestNewApp_AgentProfile(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.Agent.Profile = "explore"
	cfg.Agent.Tools = map[string]bool{"write_file": true}

	a, err := newApp(context.Background(), cfg, dir)
	require.NoError(t, err)
	ids := a.agents.Tools().IDs()
	assert.NotContains(t, ids, "run_command")
	assert.Contains(t, ids, "write_file")

	cfg.Agent.Profile = "build"
	_, err = newApp(context.Background(), cfg, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown agent profile "build"`)
}

func TestNewApp_RestoresApprovals(t *testing.T) {
	cfg, dir := testConfig(t)
	cfg.StateDir = t.TempDir()
	target := filepath.Join(dir, "notes.txt")

	store := permission.NewStore(storage.New(cfg.StateDir))
	_, err := store.Approve(context.Background(), target, permission.OpEdit)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, dir)
	require.NoError(t, err)
	require.NotNil(t, a.store)
	assert.True(t, a.gate.IsOperationApproved(target, permission.OpEdit))
}

func TestApproveCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	state := t.TempDir()
	_, dir := testConfig(t)
	target := filepath.Join(dir, "script.sh")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"approve", target, "Execute", "--state-dir", state})
	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "Approved execute on ")

	gate := permission.New()
	require.NoError(t, gate.AddAllowedPath(dir))
	n, err := permission.NewStore(storage.New(state)).Restore(context.Background(), gate)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, gate.IsOperationApproved(target, permission.OpExecute))

	rootCmd.SetArgs([]string{"approve", target, "delete", "--state-dir", state})
	err = Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown operation "delete"`)
}
