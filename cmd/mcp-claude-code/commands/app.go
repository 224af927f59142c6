package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/mcp-claude-code/internal/agent"
	"github.com/opencode-ai/mcp-claude-code/internal/command"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/provider"
	"github.com/opencode-ai/mcp-claude-code/internal/storage"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
	"github.com/opencode-ai/mcp-claude-code/pkg/mcpserver"
	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

const instructions = `Tools here read, search and edit files, run commands and scripts, and dispatch sub-agents.
Every path must be inside the allowed directories; other paths are refused.`

// app is the wired server: gate, executor, tools, orchestrator and the
// MCP server on top of them.
type app struct {
	cfg      *types.Config
	gate     *permission.Gate
	executor *command.Executor
	tools    *tool.Registry
	agents   *agent.Orchestrator
	mcp      *mcpgo.MCPServer
	store    *permission.Store
}

// newGate builds the permission gate from configuration.
func newGate(cfg *types.Config) (*permission.Gate, error) {
	var opts []permission.Option
	if p := cfg.Permission; p != nil && p.OperationTimeout > 0 {
		opts = append(opts, permission.WithOperationTimeout(time.Duration(p.OperationTimeout)*time.Second))
	}
	gate := permission.New(opts...)

	for _, path := range cfg.AllowedPaths {
		if err := gate.AddAllowedPath(path); err != nil {
			return nil, fmt.Errorf("allow path %s: %w", path, err)
		}
	}
	if p := cfg.Permission; p != nil {
		for _, path := range p.ExcludedPaths {
			if err := gate.ExcludePath(path); err != nil {
				return nil, fmt.Errorf("exclude path %s: %w", path, err)
			}
		}
		for _, pattern := range p.ExcludedPatterns {
			gate.AddExclusionPattern(pattern)
		}
		gate.RequireApproval(p.RequireApproval...)
	}
	return gate, nil
}

// newExecutor builds the command executor from configuration.
func newExecutor(cfg *types.Config, gate *permission.Gate) *command.Executor {
	var opts []command.ExecutorOption
	if c := cfg.Command; c != nil {
		if c.Timeout > 0 {
			opts = append(opts, command.WithDefaultTimeout(time.Duration(c.Timeout)*time.Second))
		}
		opts = append(opts, command.WithAllowed(c.Allow...), command.WithDenied(c.Deny...))
	}
	return command.NewExecutor(gate, opts...)
}

// newOrchestrator builds the sub-agent orchestrator. The chat model is
// created on first use so the server starts without provider credentials.
func newOrchestrator(cfg *types.Config, tools *tool.Registry, gate *permission.Gate, workDir string) (*agent.Orchestrator, error) {
	profile, ok := agent.LookupProfile(agent.ProfileGeneral)
	if cfg.Agent != nil && cfg.Agent.Profile != "" {
		profile, ok = agent.LookupProfile(cfg.Agent.Profile)
		if !ok {
			return nil, fmt.Errorf("unknown agent profile %q (available: %v)", cfg.Agent.Profile, agent.ProfileNames())
		}
	}
	if ok && cfg.Agent != nil && len(cfg.Agent.Tools) > 0 {
		profile = profile.WithOverrides(cfg.Agent.Tools)
	}

	source := func(ctx context.Context) (model.ToolCallingChatModel, error) {
		p, err := provider.New(ctx, cfg.Agent)
		if err != nil {
			return nil, err
		}
		log.Info().Str("provider", p.ID()).Str("model", p.Model()).Msg("sub-agent model ready")
		return p.ChatModel(), nil
	}

	return agent.New(source, tools, gate, agent.ConfigFrom(cfg.Agent),
		agent.WithProfile(profile),
		agent.WithWorkDir(workDir),
	), nil
}

// newApp wires every component. workDir is where relative paths resolve.
func newApp(ctx context.Context, cfg *types.Config, workDir string) (*app, error) {
	gate, err := newGate(cfg)
	if err != nil {
		return nil, err
	}
	if len(gate.AllowedPaths()) == 0 {
		log.Warn().Msg("no allowed paths configured; every file and command tool will be refused")
	}

	a := &app{cfg: cfg, gate: gate}

	if cfg.StateDir != "" {
		a.store = permission.NewStore(storage.New(cfg.StateDir))
		n, err := a.store.Restore(ctx, gate)
		if err != nil {
			return nil, fmt.Errorf("restore permission state: %w", err)
		}
		if n > 0 {
			log.Info().Int("approvals", n).Msg("restored approvals")
		}
	}

	a.executor = newExecutor(cfg, gate)
	a.tools = tool.DefaultRegistry(gate, a.executor, workDir)

	a.agents, err = newOrchestrator(cfg, a.tools, gate, workDir)
	if err != nil {
		return nil, err
	}
	a.tools.RegisterDispatchTool(a.agents)

	a.mcp = mcpserver.NewServer(a.tools, mcpserver.Options{
		Name:         cfg.Name,
		Version:      Version,
		Instructions: instructions,
	})
	return a, nil
}
