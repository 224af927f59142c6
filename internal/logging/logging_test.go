package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, InfoLevel, cfg.Level)
	assert.Equal(t, os.Stderr, cfg.Output)
	assert.False(t, cfg.Pretty)
	assert.Equal(t, time.RFC3339, cfg.TimeFormat)
	assert.False(t, cfg.LogToFile)
	assert.Equal(t, os.TempDir(), cfg.LogDir)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"  debug  ", DebugLevel},
		{"info", InfoLevel},
		{"WARNING", WarnLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"FATAL", FatalLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, Output: &buf})

	Debug().Msg("debug message")
	Info().Msg("info message")
	Warn().Msg("warn message")
	Error().Msg("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestPackageLoggerSharesSink(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	log.Info().Str("component", "executor").Msg("through zerolog/log")

	assert.Contains(t, buf.String(), "through zerolog/log")
	assert.Contains(t, buf.String(), "executor")
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, Pretty: true})

	Info().Msg("pretty test")

	assert.Contains(t, buf.String(), "pretty test")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestLogToFile(t *testing.T) {
	dir := t.TempDir()
	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: dir})
	defer Close()

	Info().Msg("file log test")

	path := GetLogFilePath()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, dir))

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "mcp-claude-code-"), name)
	assert.True(t, strings.HasSuffix(name, ".log"), name)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file log test")
}

func TestCloseResetsPath(t *testing.T) {
	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: t.TempDir()})
	require.NotEmpty(t, GetLogFilePath())

	Close()
	assert.Empty(t, GetLogFilePath())

	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}})
	assert.Empty(t, GetLogFilePath())
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	child := With().Str("component", "gate").Logger()
	child.Info().Msg("with context")

	assert.Contains(t, buf.String(), `"component":"gate"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})
	defer Init(DefaultConfig())

	agentLog := Component("agent")
	agentLog.Info().Str("run", "01ABC").Msg("Agent started")

	out := buf.String()
	assert.Contains(t, out, `"component":"agent"`)
	assert.Contains(t, out, `"run":"01ABC"`)
}
