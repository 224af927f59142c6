package permission

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellCommand is one simple command found in a command line.
type ShellCommand struct {
	Name string
	Args []string
}

// ParseCommand parses a command line and returns every simple command in it,
// including those nested in pipelines and substitutions.
func ParseCommand(command string) ([]ShellCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []ShellCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			name := wordToString(call.Args[0])
			if name == "" {
				return true
			}
			cmd := ShellCommand{Name: filepath.Base(name)}
			for _, arg := range call.Args[1:] {
				cmd.Args = append(cmd.Args, wordToString(arg))
			}
			commands = append(commands, cmd)
		}
		return true
	})

	return commands, nil
}

// wordToString flattens a word. Expansions become "$" markers so callers
// can recognise arguments whose value is only known at run time.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				} else {
					sb.WriteString("$")
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// FileCommands take file or directory operands. The value is the number of
// leading operands that are not paths (chmod's mode, chown's owner).
var FileCommands = map[string]int{
	"cat":   0,
	"head":  0,
	"tail":  0,
	"less":  0,
	"more":  0,
	"ls":    0,
	"stat":  0,
	"wc":    0,
	"file":  0,
	"du":    0,
	"tree":  0,
	"diff":  0,
	"cd":    0,
	"cp":    0,
	"mv":    0,
	"rm":    0,
	"rmdir": 0,
	"mkdir": 0,
	"touch": 0,
	"ln":    0,
	"tee":   0,
	"chmod": 1,
	"chown": 1,
	"chgrp": 1,
}

// CommandPaths returns the path operands of cmd. Flags, numeric flag
// values and dynamic arguments are skipped.
func CommandPaths(cmd ShellCommand) []string {
	skip, ok := FileCommands[cmd.Name]
	if !ok {
		return nil
	}

	var paths []string
	for _, arg := range cmd.Args {
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if strings.Contains(arg, "$") || isNumeric(arg) {
			continue
		}
		paths = append(paths, arg)
	}
	return paths
}

// CheckCommandPaths verifies that every path operand of every file command
// in the command line resolves inside the gate. Relative operands are
// resolved against cwd.
func (g *Gate) CheckCommandPaths(command, cwd string) error {
	commands, err := ParseCommand(command)
	if err != nil {
		return err
	}

	for _, cmd := range commands {
		for _, p := range CommandPaths(cmd) {
			resolved := ResolvePath(p, cwd)
			if _, reason := g.check(resolved); reason != "" {
				return &DeniedError{Path: resolved, Operation: OpExecute, Reason: reason}
			}
		}
	}
	return nil
}

// ResolvePath makes path absolute relative to workDir, expanding "~".
func ResolvePath(path, workDir string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(workDir, path))
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
