package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

const (
	defaultReadLimit = 2000
	maxLineLength    = 2000
)

const readDescription = `Reads one or more files from the local filesystem.

Usage:
- paths lists the files to read; relative paths resolve against the working directory
- By default, reads up to 2000 lines from the beginning of each file
- offset (1-based line) and limit paginate long files
- Returns file contents with line numbers
- Only files inside the allowed directories can be read`

// ReadTool implements read_files.
type ReadTool struct {
	files *fileBase
}

// ReadInput represents the input for read_files.
type ReadInput struct {
	Paths  []string `json:"paths"`
	Offset int      `json:"offset,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// NewReadTool creates a new read tool.
func NewReadTool(gate *permission.Gate, workDir string) *ReadTool {
	return &ReadTool{files: newFileBase(gate, workDir)}
}

func (t *ReadTool) ID() string          { return "read_files" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"paths": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Paths of the files to read"
			},
			"offset": {
				"type": "integer",
				"description": "Line number to start reading from (1-based)"
			},
			"limit": {
				"type": "integer",
				"description": "Number of lines to read per file (default: 2000)"
			}
		},
		"required": ["paths"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	if len(params.Paths) == 0 {
		return nil, fmt.Errorf("paths must list at least one file")
	}
	if params.Limit <= 0 {
		params.Limit = defaultReadLimit
	}

	// A single file reports its failure directly.
	if len(params.Paths) == 1 {
		out, err := t.readOne(params.Paths[0], params.Offset, params.Limit, toolCtx)
		if err != nil {
			return nil, err
		}
		return &Result{Title: "Read " + params.Paths[0], Output: out}, nil
	}

	sections := make([]string, 0, len(params.Paths))
	failed := 0
	for _, p := range params.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := t.readOne(p, params.Offset, params.Limit, toolCtx)
		if err != nil {
			failed++
			out = fmt.Sprintf("<file path=%q>\n%s%v\n</file>", p, ErrorPrefix, err)
		}
		sections = append(sections, out)
	}
	if failed == len(params.Paths) {
		return nil, fmt.Errorf("none of the %d files could be read:\n\n%s", failed, strings.Join(sections, "\n\n"))
	}

	return &Result{
		Title:  fmt.Sprintf("Read %d files", len(params.Paths)-failed),
		Output: strings.Join(sections, "\n\n"),
		Metadata: map[string]any{
			"files":  len(params.Paths),
			"failed": failed,
		},
	}, nil
}

func (t *ReadTool) readOne(path string, offset, limit int, toolCtx *Context) (string, error) {
	resolved, err := t.files.authorize(path, permission.OpRead, toolCtx)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", resolved)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", resolved)
	}
	if isBinaryFile(resolved) {
		return "", fmt.Errorf("file appears to be binary: %s", resolved)
	}

	file, err := os.Open(resolved)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if offset > 0 && lineNum < offset {
			continue
		}
		if len(lines) >= limit {
			continue
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", resolved, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<file path=%q>\n", resolved)
	sb.WriteString(strings.Join(lines, "\n"))

	start := max(offset, 1)
	lastReadLine := start - 1 + len(lines)
	if lineNum > lastReadLine {
		fmt.Fprintf(&sb, "\n\n(File has more lines. Use 'offset' parameter to read beyond line %d)", lastReadLine)
	} else {
		fmt.Fprintf(&sb, "\n\n(End of file - total %d lines)", lineNum)
	}
	sb.WriteString("\n</file>")
	return sb.String(), nil
}

func (t *ReadTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
