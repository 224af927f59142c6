// Package commands provides the CLI commands for mcp-claude-code.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/mcp-claude-code/internal/config"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	configPath string
	stateDir   string
	logLevel   string
	logToFile  bool
)

// Server flags
var (
	serverName   string
	transport    string
	address      string
	allowPaths   []string
	agentProfile string
)

var rootCmd = &cobra.Command{
	Use:   "mcp-claude-code",
	Short: "MCP server for filesystem, shell and sub-agent tools",
	Long: `mcp-claude-code is an MCP server that gives an assistant file access,
command and script execution, and sub-agents, all limited to the
directories passed with --allow-path.

Run it over stdio (the default) from an MCP client, or with
--transport sse to serve it over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Configuration file (JSON, JSONC or YAML)")
	pf.StringVar(&stateDir, "state-dir", "", "Directory for the persisted permission state")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.BoolVar(&logToFile, "log-file", false, "Also write JSON logs to a file")

	f := rootCmd.Flags()
	f.StringVar(&serverName, "name", config.DefaultName, "Server name advertised to MCP clients")
	f.StringVar(&transport, "transport", config.DefaultTransport, "Transport: stdio or sse")
	f.StringVar(&address, "address", config.DefaultAddress, "Listen address for the sse transport")
	f.StringArrayVar(&allowPaths, "allow-path", nil, "Directory tools may access (repeatable)")
	f.StringVar(&agentProfile, "agent-profile", "", "Sub-agent tool profile (general|explore)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("mcp-claude-code %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mcp-claude-code %s (%s)\n", Version, BuildTime)
	},
}

// loadConfig loads the layered configuration and applies command-line
// flags over it. Only flags set explicitly override file values.
func loadConfig(cmd *cobra.Command) (*types.Config, string, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(workDir, configPath)
	if err != nil {
		return nil, "", err
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = serverName
	}
	if flags.Changed("transport") {
		cfg.Transport = transport
	}
	if flags.Changed("address") {
		cfg.Address = address
	}
	if flags.Changed("agent-profile") {
		if cfg.Agent == nil {
			cfg.Agent = &types.AgentConfig{}
		}
		cfg.Agent.Profile = agentProfile
	}
	cfg.AllowedPaths = append(cfg.AllowedPaths, allowPaths...)
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport != "stdio" && cfg.Transport != "sse" {
		return nil, "", fmt.Errorf("unsupported transport %q (expected stdio or sse)", cfg.Transport)
	}
	return cfg, workDir, nil
}

// initLogging configures the global logger. Logs always go to stderr:
// stdout carries the stdio transport.
func initLogging(cfg *types.Config) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Output = os.Stderr
	logCfg.LogToFile = logToFile
	if cfg.StateDir != "" {
		logCfg.LogDir = cfg.StateDir
	}
	logging.Init(logCfg)
}
