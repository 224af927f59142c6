package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

const (
	maxSearchMatches  = 100
	maxSearchFileSize = 10 << 20
	maxMatchLength    = 500
)

var errSearchLimit = errors.New("match limit reached")

const searchDescription = `Searches file contents with a regular expression.

Usage:
- pattern is a Go regular expression (RE2 syntax)
- include filters files by glob, e.g. "*.go" or "src/**/*.ts"
- Returns file:line: content for each match, up to 100 matches
- Binary files and dependency directories are skipped`

// SearchTool implements search_content.
type SearchTool struct {
	files *fileBase
}

// SearchInput represents the input for search_content.
type SearchInput struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path,omitempty"`
	Include         string `json:"include,omitempty"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty"`
}

// SearchMatch represents a search match.
type SearchMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// NewSearchTool creates a new content search tool.
func NewSearchTool(gate *permission.Gate, workDir string) *SearchTool {
	return &SearchTool{files: newFileBase(gate, workDir)}
}

func (t *SearchTool) ID() string          { return "search_content" }
func (t *SearchTool) Description() string { return searchDescription }

func (t *SearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The regular expression to search for"
			},
			"path": {
				"type": "string",
				"description": "File or directory to search (default: working directory)"
			},
			"include": {
				"type": "string",
				"description": "Glob filter for file names, e.g. \"*.go\""
			},
			"case_insensitive": {
				"type": "boolean",
				"description": "Match case-insensitively"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params SearchInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	expr := params.Pattern
	if params.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression: %w", err)
	}
	if params.Include != "" && !doublestar.ValidatePattern(params.Include) {
		return nil, fmt.Errorf("invalid include pattern: %s", params.Include)
	}
	if params.Path == "" {
		params.Path = "."
	}

	root, err := t.files.authorize(params.Path, permission.OpRead, toolCtx)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("path not found: %s", root)
	}

	var matches []SearchMatch
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && (defaultIgnoreDirs[d.Name()] || !t.files.visible(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !t.files.visible(path) {
			return nil
		}
		if params.Include != "" && !includeMatches(params.Include, root, path) {
			return nil
		}
		return searchFile(path, re, &matches)
	})
	truncated := errors.Is(walkErr, errSearchLimit)
	if walkErr != nil && !truncated {
		return nil, walkErr
	}

	if len(matches) == 0 {
		return &Result{
			Title:  "Search results",
			Output: "No matches found",
			Metadata: map[string]any{
				"pattern": params.Pattern,
				"count":   0,
			},
		}, nil
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Content)
	}
	if truncated {
		fmt.Fprintf(&sb, "\n(Showing first %d matches)", maxSearchMatches)
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d matches", len(matches)),
		Output: strings.TrimRight(sb.String(), "\n"),
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(matches),
			"truncated": truncated,
		},
	}, nil
}

// includeMatches matches patterns containing a slash against the path
// relative to root and other patterns against the base name.
func includeMatches(pattern, root, path string) bool {
	target := filepath.Base(path)
	if strings.Contains(pattern, "/") {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		target = filepath.ToSlash(rel)
	}
	ok, _ := doublestar.Match(pattern, target)
	return ok
}

func searchFile(path string, re *regexp.Regexp, matches *[]SearchMatch) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxSearchFileSize || isBinaryFile(path) {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		if len(line) > maxMatchLength {
			line = line[:maxMatchLength] + "..."
		}
		*matches = append(*matches, SearchMatch{File: path, Line: lineNum, Content: line})
		if len(*matches) >= maxSearchMatches {
			return errSearchLimit
		}
	}
	return nil
}

func (t *SearchTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
