package command

import (
	"encoding/base64"
	"fmt"
	"path/filepath"

	"al.essio.dev/pkg/shellescape"
)

// ScriptStrategy decides how a script body reaches its interpreter.
type ScriptStrategy interface {
	// Prepare returns the argv to spawn and the text to write to stdin.
	Prepare(interpreter []string, script string) (argv []string, stdin string)
}

// StdinStrategy runs the interpreter as given and writes the script to its
// stdin.
type StdinStrategy struct{}

func (StdinStrategy) Prepare(interpreter []string, script string) ([]string, string) {
	return append([]string(nil), interpreter...), script
}

// Base64PipeStrategy hands the script to the interpreter through
// "printf | base64 -d | interpreter" run by Shell. fish reads stdin
// unreliably when it is a plain pipe from the parent.
type Base64PipeStrategy struct {
	Shell string
}

func (s Base64PipeStrategy) Prepare(interpreter []string, script string) ([]string, string) {
	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(script))
	pipeline := fmt.Sprintf("printf '%%s' %s | base64 -d | %s",
		shellescape.Quote(encoded), shellescape.QuoteCommand(interpreter))
	return []string{shell, "-c", pipeline}, ""
}

func defaultStrategies() map[string]ScriptStrategy {
	return map[string]ScriptStrategy{
		"fish": Base64PipeStrategy{Shell: "/bin/sh"},
	}
}

// RegisterStrategy sets the strategy for interpreters whose base name is
// name.
func (e *Executor) RegisterStrategy(name string, s ScriptStrategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[name] = s
}

func (e *Executor) strategyFor(interpreter string) ScriptStrategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.strategies[filepath.Base(interpreter)]; ok {
		return s
	}
	return StdinStrategy{}
}
