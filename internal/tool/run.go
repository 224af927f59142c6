package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/command"
)

const runCommandDescription = `Executes a single command without a shell.

Usage:
- The command is split into words with shell quoting rules and run directly
- Pipes, redirections, command chaining and substitutions are rejected
- Destructive commands (rm, mv, sudo, ...) are rejected
- cwd must be inside the allowed directories
- timeout is in seconds (default 60)`

const runScriptDescription = `Executes a script with an interpreter.

Usage:
- The script is passed to the interpreter on stdin (default interpreter: bash)
- interpreter may include arguments, e.g. "python3 -u"
- cwd must be inside the allowed directories
- timeout is in seconds (default 60)`

const scriptToolDescription = `Writes a script to a temporary file and runs it with the interpreter for its language.

Usage:
- language is one of the supported languages (python, javascript, bash, ...)
- args are passed to the script
- cwd must be inside the allowed directories
- timeout is in seconds (default 60)`

// execBase is shared by the tools that run processes.
type execBase struct {
	exec    *command.Executor
	workDir string
}

func (b *execBase) options(cwd string, timeout float64, env map[string]string, toolCtx *Context) command.Options {
	base := b.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		base = toolCtx.WorkDir
	}
	switch {
	case cwd == "":
		// Default to the base only when the gate accepts it; otherwise
		// the process inherits the server's directory.
		if base != "" && b.exec.CanRunIn(base) {
			cwd = base
		}
	case !filepath.IsAbs(cwd) && base != "":
		cwd = filepath.Join(base, cwd)
	}
	opts := command.Options{Cwd: cwd, Env: env}
	if timeout > 0 {
		opts.Timeout = time.Duration(timeout * float64(time.Second))
	}
	return opts
}

// output converts a command result into tool output, failing on a
// nonzero return code.
func output(title string, res *command.Result) (*Result, error) {
	if !res.IsSuccess() {
		return nil, errors.New(strings.TrimPrefix(res.Format(), ErrorPrefix))
	}
	return &Result{
		Title:    title,
		Output:   res.Format(),
		Metadata: map[string]any{"returnCode": res.ReturnCode},
	}, nil
}

// RunCommandTool implements run_command.
type RunCommandTool struct {
	execBase
}

// RunCommandInput represents the input for run_command.
type RunCommandInput struct {
	Command string            `json:"command"`
	Cwd     string            `json:"cwd,omitempty"`
	Timeout float64           `json:"timeout,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// NewRunCommandTool creates the run_command tool.
func NewRunCommandTool(exec *command.Executor, workDir string) *RunCommandTool {
	return &RunCommandTool{execBase{exec: exec, workDir: workDir}}
}

func (t *RunCommandTool) ID() string          { return "run_command" }
func (t *RunCommandTool) Description() string { return runCommandDescription }

func (t *RunCommandTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The command to execute"
			},
			"cwd": {
				"type": "string",
				"description": "Working directory (default: server working directory)"
			},
			"timeout": {
				"type": "number",
				"description": "Timeout in seconds (default: 60)"
			},
			"env": {
				"type": "object",
				"description": "Extra environment variables"
			}
		},
		"required": ["command"]
	}`)
}

func (t *RunCommandTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params RunCommandInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	res := t.exec.ExecuteCommand(ctx, params.Command, t.options(params.Cwd, params.Timeout, params.Env, toolCtx))
	return output(params.Command, res)
}

func (t *RunCommandTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// RunScriptTool implements run_script.
type RunScriptTool struct {
	execBase
}

// RunScriptInput represents the input for run_script.
type RunScriptInput struct {
	Script      string            `json:"script"`
	Interpreter string            `json:"interpreter,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Timeout     float64           `json:"timeout,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// NewRunScriptTool creates the run_script tool.
func NewRunScriptTool(exec *command.Executor, workDir string) *RunScriptTool {
	return &RunScriptTool{execBase{exec: exec, workDir: workDir}}
}

func (t *RunScriptTool) ID() string          { return "run_script" }
func (t *RunScriptTool) Description() string { return runScriptDescription }

func (t *RunScriptTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"script": {
				"type": "string",
				"description": "The script body"
			},
			"interpreter": {
				"type": "string",
				"description": "Interpreter command (default: bash)"
			},
			"cwd": {
				"type": "string",
				"description": "Working directory (default: server working directory)"
			},
			"timeout": {
				"type": "number",
				"description": "Timeout in seconds (default: 60)"
			},
			"env": {
				"type": "object",
				"description": "Extra environment variables"
			}
		},
		"required": ["script"]
	}`)
}

func (t *RunScriptTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params RunScriptInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	interpreter := params.Interpreter
	if interpreter == "" {
		interpreter = "bash"
	}
	res := t.exec.ExecuteScript(ctx, params.Script, interpreter, t.options(params.Cwd, params.Timeout, params.Env, toolCtx))
	return output("Script ("+interpreter+")", res)
}

func (t *RunScriptTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// ScriptTool implements script_tool.
type ScriptTool struct {
	execBase
}

// ScriptInput represents the input for script_tool.
type ScriptInput struct {
	Language string            `json:"language"`
	Script   string            `json:"script"`
	Args     []string          `json:"args,omitempty"`
	Cwd      string            `json:"cwd,omitempty"`
	Timeout  float64           `json:"timeout,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
}

// NewScriptTool creates the script_tool tool.
func NewScriptTool(exec *command.Executor, workDir string) *ScriptTool {
	return &ScriptTool{execBase{exec: exec, workDir: workDir}}
}

func (t *ScriptTool) ID() string { return "script_tool" }

func (t *ScriptTool) Description() string {
	return scriptToolDescription + "\n\nSupported languages: " + strings.Join(command.AvailableLanguages(), ", ")
}

func (t *ScriptTool) Parameters() json.RawMessage {
	langs, _ := json.Marshal(command.AvailableLanguages())
	return json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"language": {
				"type": "string",
				"description": "Script language",
				"enum": %s
			},
			"script": {
				"type": "string",
				"description": "The script body"
			},
			"args": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Arguments passed to the script"
			},
			"cwd": {
				"type": "string",
				"description": "Working directory (default: server working directory)"
			},
			"timeout": {
				"type": "number",
				"description": "Timeout in seconds (default: 60)"
			},
			"env": {
				"type": "object",
				"description": "Extra environment variables"
			}
		},
		"required": ["language", "script"]
	}`, langs))
}

func (t *ScriptTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ScriptInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	res := t.exec.ExecuteScriptFromFile(ctx, params.Script, params.Language,
		t.options(params.Cwd, params.Timeout, params.Env, toolCtx), params.Args...)
	return output("Script ("+params.Language+")", res)
}

func (t *ScriptTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
