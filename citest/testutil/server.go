package testutil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opencode-ai/mcp-claude-code/internal/agent"
	"github.com/opencode-ai/mcp-claude-code/internal/command"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/provider"
	"github.com/opencode-ai/mcp-claude-code/internal/server"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
	"github.com/opencode-ai/mcp-claude-code/pkg/mcpserver"
	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

// TestServer is a fully wired server listening on a free local port, with
// sub-agents talking to a mock LLM.
type TestServer struct {
	Server   *server.Server
	BaseURL  string
	Config   *types.Config
	Gate     *permission.Gate
	Tools    *tool.Registry
	Agents   *agent.Orchestrator
	MockLLM  *MockLLMServer
	WorkDir  string
	ownsWork bool
}

// TestServerOption configures TestServer.
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	workDir  string
	envFile  string
	mock     *MockLLMConfig
	realLLM  bool
	agentCfg func(*types.AgentConfig)
}

// WithWorkDir serves an existing directory instead of a fresh workspace.
func WithWorkDir(dir string) TestServerOption {
	return func(c *testServerConfig) { c.workDir = dir }
}

// WithEnvFile sets the .env file to load.
func WithEnvFile(path string) TestServerOption {
	return func(c *testServerConfig) { c.envFile = path }
}

// WithMockLLMConfig scripts the mock LLM.
func WithMockLLMConfig(cfg *MockLLMConfig) TestServerOption {
	return func(c *testServerConfig) { c.mock = cfg }
}

// WithAgentConfig adjusts the sub-agent configuration before wiring.
func WithAgentConfig(fn func(*types.AgentConfig)) TestServerOption {
	return func(c *testServerConfig) { c.agentCfg = fn }
}

// WithRealLLM points sub-agents at the provider named by AGENT_MODEL
// (for example "ark/<endpoint>") instead of the mock.
func WithRealLLM() TestServerOption {
	return func(c *testServerConfig) { c.realLLM = true }
}

// StartTestServer creates and starts a test server.
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.envFile != "" {
		_ = godotenv.Load(cfg.envFile)
	} else {
		_ = godotenv.Load("../../.env")
		_ = godotenv.Load("../.env")
	}

	ts := &TestServer{WorkDir: cfg.workDir}
	if ts.WorkDir == "" {
		dir, err := NewWorkspace()
		if err != nil {
			return nil, err
		}
		ts.WorkDir, ts.ownsWork = dir, true
	}

	appConfig := &types.Config{
		Name:         "claude-code-test",
		Transport:    "sse",
		AllowedPaths: []string{ts.WorkDir},
		Agent: &types.AgentConfig{
			MaxToolUses:   5,
			MaxIterations: 5,
			APITimeout:    30,
		},
	}
	if cfg.realLLM {
		appConfig.Agent.Model = os.Getenv("AGENT_MODEL")
	} else {
		ts.MockLLM = NewMockLLMServer(cfg.mock)
		appConfig.Agent.Provider = "openai"
		appConfig.Agent.Model = "mock-gpt"
		appConfig.Agent.APIKey = "test-key"
		appConfig.Agent.BaseURL = ts.MockLLM.URL()
	}
	if cfg.agentCfg != nil {
		cfg.agentCfg(appConfig.Agent)
	}
	ts.Config = appConfig

	if err := ts.wire(); err != nil {
		ts.cleanup()
		return nil, err
	}
	return ts, nil
}

// wire builds the same component graph as the server binary.
func (ts *TestServer) wire() error {
	ts.Gate = permission.New()
	if err := ts.Gate.AddAllowedPath(ts.WorkDir); err != nil {
		return fmt.Errorf("allow workspace: %w", err)
	}

	executor := command.NewExecutor(ts.Gate)
	ts.Tools = tool.DefaultRegistry(ts.Gate, executor, ts.WorkDir)

	agentCfg := ts.Config.Agent
	profile, ok := agent.LookupProfile(agentCfg.Profile)
	if !ok {
		profile, _ = agent.LookupProfile(agent.ProfileGeneral)
	}
	if len(agentCfg.Tools) > 0 {
		profile = profile.WithOverrides(agentCfg.Tools)
	}
	ts.Agents = agent.New(
		func(ctx context.Context) (model.ToolCallingChatModel, error) {
			p, err := provider.New(ctx, agentCfg)
			if err != nil {
				return nil, err
			}
			return p.ChatModel(), nil
		},
		ts.Tools, ts.Gate, agent.ConfigFrom(agentCfg),
		agent.WithProfile(profile),
		agent.WithWorkDir(ts.WorkDir),
	)
	ts.Tools.RegisterDispatchTool(ts.Agents)

	port, err := findAvailablePort()
	if err != nil {
		return fmt.Errorf("failed to find available port: %w", err)
	}
	srvCfg := server.DefaultConfig()
	srvCfg.Address = fmt.Sprintf("127.0.0.1:%d", port)
	ts.BaseURL = "http://" + srvCfg.Address

	mcp := mcpserver.NewServer(ts.Tools, mcpserver.Options{Name: ts.Config.Name, Version: "test"})
	ts.Server = server.New(srvCfg, ts.Config.Name, mcp, ts.Tools, ts.Gate)
	go func() {
		_ = ts.Server.Start()
	}()

	return waitForServer(ts.BaseURL, 10*time.Second)
}

// Connect opens an MCP client session over SSE.
func (ts *TestServer) Connect(ctx context.Context) (*sdkmcp.ClientSession, error) {
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "citest", Version: "1.0.0"}, nil)
	return client.Connect(ctx, &sdkmcp.SSEClientTransport{Endpoint: ts.BaseURL + server.SSEEndpoint}, nil)
}

// Stop shuts down the test server and cleans up.
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if ts.Server != nil {
		err = ts.Server.Shutdown(ctx)
	}
	ts.cleanup()
	return err
}

func (ts *TestServer) cleanup() {
	if ts.MockLLM != nil {
		ts.MockLLM.Close()
	}
	if ts.ownsWork {
		os.RemoveAll(ts.WorkDir)
	}
}

// SkipIfMissingEnv returns true if any of the variables is unset.
func SkipIfMissingEnv(vars ...string) bool {
	for _, v := range vars {
		if os.Getenv(v) == "" {
			return true
		}
	}
	return false
}

// findAvailablePort finds an available TCP port.
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer polls /health until the server answers.
func waitForServer(baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server not ready after %v", timeout)
}
