package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

const infoDescription = `Returns metadata about a file or directory: type, size, permissions and modification time.`

// InfoTool implements get_file_info.
type InfoTool struct {
	files *fileBase
}

// InfoInput represents the input for get_file_info.
type InfoInput struct {
	Path string `json:"path"`
}

// NewInfoTool creates a new file info tool.
func NewInfoTool(gate *permission.Gate, workDir string) *InfoTool {
	return &InfoTool{files: newFileBase(gate, workDir)}
}

func (t *InfoTool) ID() string          { return "get_file_info" }
func (t *InfoTool) Description() string { return infoDescription }

func (t *InfoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path of the file or directory"
			}
		},
		"required": ["path"]
	}`)
}

func (t *InfoTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params InfoInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}

	path, err := t.files.authorize(params.Path, permission.OpRead, toolCtx)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path not found: %s", path)
		}
		return nil, err
	}

	kind := "file"
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		kind = "symlink"
	case info.IsDir():
		kind = "directory"
	case !info.Mode().IsRegular():
		kind = "special"
	}

	lines := []string{
		"path: " + path,
		"type: " + kind,
		fmt.Sprintf("size: %d", info.Size()),
		fmt.Sprintf("permissions: %s (%04o)", info.Mode().Perm(), uint32(info.Mode().Perm())),
		"modified: " + info.ModTime().Format(time.RFC3339),
	}
	if kind == "symlink" {
		if target, err := os.Readlink(path); err == nil {
			lines = append(lines, "target: "+target)
		}
	}

	return &Result{
		Title:  fmt.Sprintf("Info for %s", filepath.Base(path)),
		Output: strings.Join(lines, "\n"),
		Metadata: map[string]any{
			"path": path,
			"type": kind,
			"size": info.Size(),
		},
	}, nil
}

func (t *InfoTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
