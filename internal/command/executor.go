package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

const (
	// DefaultTimeout applies when Options.Timeout is zero.
	DefaultTimeout = 60 * time.Second

	// waitDelay bounds how long Wait keeps reading pipes held open by
	// grandchildren after the group has been killed.
	waitDelay = time.Second
)

// DefaultExcludedCommands are refused as the first word of a command.
var DefaultExcludedCommands = []string{
	"rm", "rmdir", "mv", "dd", "mkfs", "fdisk", "format",
	"shutdown", "reboot", "halt", "poweroff",
	"sudo", "su", "chmod", "chown",
	"kill", "killall", "pkill",
}

// DefaultExcludedPatterns are refused anywhere in a raw command line.
var DefaultExcludedPatterns = []string{
	";", "|", "&", "&&", "||", "`", "$(", "${", ">", ">>", "<",
}

// Options controls a single execution.
type Options struct {
	// Cwd is the working directory. Empty means the server's own.
	Cwd string
	// Env entries override the inherited environment.
	Env map[string]string
	// Timeout overrides the executor default when positive.
	Timeout time.Duration
}

// Executor runs commands and scripts. It is safe for concurrent use.
type Executor struct {
	gate *permission.Gate

	mu               sync.RWMutex
	excludedCommands map[string]struct{}
	excludedPatterns []string
	strategies       map[string]ScriptStrategy

	defaultTimeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDefaultTimeout sets the timeout used when Options.Timeout is zero.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithDenied adds commands to the exclusion set.
func WithDenied(commands ...string) ExecutorOption {
	return func(e *Executor) {
		for _, c := range commands {
			e.excludedCommands[c] = struct{}{}
		}
	}
}

// WithAllowed removes commands from the exclusion set.
func WithAllowed(commands ...string) ExecutorOption {
	return func(e *Executor) {
		for _, c := range commands {
			delete(e.excludedCommands, c)
		}
	}
}

// NewExecutor creates an executor. A nil gate skips working directory and
// operand path checks.
func NewExecutor(gate *permission.Gate, opts ...ExecutorOption) *Executor {
	e := &Executor{
		gate:             gate,
		excludedCommands: make(map[string]struct{}, len(DefaultExcludedCommands)),
		excludedPatterns: append([]string(nil), DefaultExcludedPatterns...),
		strategies:       defaultStrategies(),
		defaultTimeout:   DefaultTimeout,
	}
	for _, c := range DefaultExcludedCommands {
		e.excludedCommands[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AllowCommand removes name from the exclusion set.
func (e *Executor) AllowCommand(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.excludedCommands, name)
}

// DenyCommand adds name to the exclusion set.
func (e *Executor) DenyCommand(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.excludedCommands[name] = struct{}{}
}

// ExcludedCommands returns the exclusion set, sorted.
func (e *Executor) ExcludedCommands() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.excludedCommands))
	for c := range e.excludedCommands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// IsCommandAllowed reports whether command passes the blacklist.
func (e *Executor) IsCommandAllowed(command string) bool {
	return e.checkCommand(command) == nil
}

func (e *Executor) checkCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("empty command")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, p := range e.excludedPatterns {
		if strings.Contains(command, p) {
			return fmt.Errorf("command contains disallowed pattern %q (blocked patterns: %s)",
				p, strings.Join(e.excludedPatterns, " "))
		}
	}

	args, err := shellwords.Parse(command)
	if err != nil {
		return fmt.Errorf("cannot parse command: %w", err)
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}
	if e.isExcludedLocked(args[0]) {
		return fmt.Errorf("command %q is not allowed (blocked commands: %s)",
			filepath.Base(args[0]), strings.Join(e.sortedExcludedLocked(), ", "))
	}
	return nil
}

func (e *Executor) isExcluded(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isExcludedLocked(name)
}

func (e *Executor) isExcludedLocked(name string) bool {
	_, ok := e.excludedCommands[filepath.Base(name)]
	return ok
}

func (e *Executor) sortedExcludedLocked() []string {
	out := make([]string, 0, len(e.excludedCommands))
	for c := range e.excludedCommands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CanRunIn reports whether dir would pass the working directory check.
func (e *Executor) CanRunIn(dir string) bool {
	return e.checkCwd(dir) == nil
}

// checkCwd authorizes the working directory against the gate.
func (e *Executor) checkCwd(cwd string) error {
	if e.gate == nil || cwd == "" {
		return nil
	}
	info, err := os.Stat(cwd)
	if err != nil {
		return fmt.Errorf("working directory %s: %w", cwd, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", cwd)
	}
	return e.gate.Authorize(cwd, permission.OpExecute)
}

// ExecuteCommand tokenizes command and runs it without a shell.
func (e *Executor) ExecuteCommand(ctx context.Context, command string, opts Options) *Result {
	start := time.Now()
	res := e.executeCommand(ctx, command, opts)
	e.publish("command", command, opts.Cwd, res, start)
	return res
}

func (e *Executor) executeCommand(ctx context.Context, command string, opts Options) *Result {
	if err := e.checkCommand(command); err != nil {
		return rejected("Command not allowed: %v", err)
	}
	if err := e.checkCwd(opts.Cwd); err != nil {
		return rejected("%v", err)
	}
	if e.gate != nil {
		if err := e.gate.CheckCommandPaths(command, opts.Cwd); err != nil {
			return rejected("%v", err)
		}
	}

	args, err := shellwords.Parse(command)
	if err != nil {
		return rejected("cannot parse command: %v", err)
	}
	return e.run(ctx, args, "", opts)
}

// ExecuteScript passes script to interpreter. An empty interpreter means
// bash. The interpreter may carry arguments, e.g. "python3 -u".
func (e *Executor) ExecuteScript(ctx context.Context, script, interpreter string, opts Options) *Result {
	start := time.Now()
	res := e.executeScript(ctx, script, interpreter, opts)
	e.publish("script", interpreter, opts.Cwd, res, start)
	return res
}

func (e *Executor) executeScript(ctx context.Context, script, interpreter string, opts Options) *Result {
	if strings.TrimSpace(interpreter) == "" {
		interpreter = "bash"
	}
	argv, err := shellwords.Parse(interpreter)
	if err != nil {
		return rejected("cannot parse interpreter %q: %v", interpreter, err)
	}
	if len(argv) == 0 {
		return rejected("empty interpreter")
	}
	if e.isExcluded(argv[0]) {
		return rejected("Interpreter not allowed: %s", filepath.Base(argv[0]))
	}
	if err := e.checkCwd(opts.Cwd); err != nil {
		return rejected("%v", err)
	}

	cmdArgs, stdin := e.strategyFor(argv[0]).Prepare(argv, script)
	return e.run(ctx, cmdArgs, stdin, opts)
}

// ExecuteScriptFromFile writes script to a temporary file with the
// language's extension and runs the language's interpreter on it. The file
// is removed afterwards.
func (e *Executor) ExecuteScriptFromFile(ctx context.Context, script, language string, opts Options, args ...string) *Result {
	start := time.Now()
	res := e.executeScriptFromFile(ctx, script, language, opts, args)
	e.publish("file", language, opts.Cwd, res, start)
	return res
}

func (e *Executor) executeScriptFromFile(ctx context.Context, script, language string, opts Options, args []string) *Result {
	lang, ok := LookupLanguage(language)
	if !ok {
		return rejected("Unsupported language: %s. Supported languages: %s",
			language, strings.Join(AvailableLanguages(), ", "))
	}
	if e.isExcluded(lang.Interpreter) {
		return rejected("Interpreter not allowed: %s", lang.Interpreter)
	}
	if err := e.checkCwd(opts.Cwd); err != nil {
		return rejected("%v", err)
	}

	f, err := os.CreateTemp("", "mcp-script-*"+lang.Extension)
	if err != nil {
		return rejected("Error creating script file: %v", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return rejected("Error writing script file: %v", err)
	}
	if err := f.Close(); err != nil {
		return rejected("Error writing script file: %v", err)
	}

	argv := append([]string{lang.Interpreter, path}, args...)
	return e.run(ctx, argv, "", opts)
}

// run spawns argv in its own process group and waits for it, killing the
// group when the timeout elapses or ctx is cancelled.
func (e *Executor) run(ctx context.Context, argv []string, stdin string, opts Options) *Result {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = opts.Cwd
	cmd.Env = mergeEnv(os.Environ(), opts.Env)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := &Result{Stdout: decode(stdout.Bytes()), Stderr: decode(stderr.Bytes())}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		res.ReturnCode = 1
		res.ErrorMessage = fmt.Sprintf("Command cancelled: %v", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.ReturnCode = TimeoutReturnCode
		res.ErrorMessage = fmt.Sprintf("Command timed out after %s seconds", formatSeconds(timeout))
	case err == nil:
		res.ReturnCode = 0
	case errors.As(err, &exitErr):
		res.ReturnCode = exitErr.ExitCode()
		if res.ReturnCode < 0 {
			// Killed by a signal from outside.
			res.ReturnCode = 1
			res.ErrorMessage = fmt.Sprintf("Process terminated: %v", exitErr)
		}
	default:
		res.ReturnCode = 1
		res.ErrorMessage = fmt.Sprintf("Error executing command: %v", err)
	}
	return res
}

func (e *Executor) publish(kind, command, cwd string, res *Result, start time.Time) {
	duration := time.Since(start)
	logging.Debug().
		Str("kind", kind).
		Str("command", command).
		Int("returnCode", res.ReturnCode).
		Dur("duration", duration).
		Msg("Command finished")

	event.Publish(event.Event{
		Type: event.CommandExecuted,
		Data: event.CommandExecutedData{
			Command:    command,
			Kind:       kind,
			Cwd:        cwd,
			ReturnCode: res.ReturnCode,
			TimedOut:   res.TimedOut(),
			Rejected:   res.Rejected(),
			Duration:   duration.Seconds(),
		},
	})
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
