package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

// minFuzzySimilarity is the lowest similarity accepted for a fuzzy match.
const minFuzzySimilarity = 0.7

const editDescription = `Applies a list of text replacements to a file.

Usage:
- Each edit replaces old_text with new_text; edits apply in order
- old_text must match exactly once; if it does not, whitespace-normalized and
  fuzzy matching are tried before the edit is reported as failed
- Edits that fail are skipped and reported; the output says how many of the
  requested edits were applied
- dry_run returns the diff without writing the file`

// EditTool implements edit_file.
type EditTool struct {
	files *fileBase
}

// Edit is one replacement.
type Edit struct {
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// EditInput represents the input for edit_file.
type EditInput struct {
	Path   string `json:"path"`
	Edits  []Edit `json:"edits"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(gate *permission.Gate, workDir string) *EditTool {
	return &EditTool{files: newFileBase(gate, workDir)}
}

func (t *EditTool) ID() string          { return "edit_file" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path of the file to edit"
			},
			"edits": {
				"type": "array",
				"description": "Replacements to apply in order",
				"items": {
					"type": "object",
					"properties": {
						"old_text": {"type": "string", "description": "Text to replace"},
						"new_text": {"type": "string", "description": "Replacement text"}
					},
					"required": ["old_text", "new_text"]
				}
			},
			"dry_run": {
				"type": "boolean",
				"description": "Preview the diff without writing (default: false)"
			}
		},
		"required": ["path", "edits"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	if len(params.Edits) == 0 {
		return nil, fmt.Errorf("edits must contain at least one edit")
	}

	path, err := t.files.authorize(params.Path, permission.OpEdit, toolCtx)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	before := string(content)

	text := before
	var failures []string
	var notes []string
	applied := 0
	for i, edit := range params.Edits {
		next, note, err := applyEdit(text, edit)
		if err != nil {
			failures = append(failures, fmt.Sprintf("edit %d: %v", i+1, err))
			continue
		}
		text = next
		applied++
		if note != "" {
			notes = append(notes, fmt.Sprintf("edit %d: %s", i+1, note))
		}
	}

	if applied == 0 {
		return nil, fmt.Errorf("applied 0 of %d edits to %s\n%s",
			len(params.Edits), path, strings.Join(failures, "\n"))
	}

	if !params.DryRun {
		if err := os.WriteFile(path, []byte(text), info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("failed to write file: %w", err)
		}
		event.Publish(event.Event{
			Type: event.FileEdited,
			Data: event.FileEditedData{File: path},
		})
	}

	change := diffText(path, before, text, t.files.workDir)

	var sb strings.Builder
	if params.DryRun {
		fmt.Fprintf(&sb, "Dry run: would apply %d of %d edits to %s (%s)", applied, len(params.Edits), path, change.Stat())
	} else {
		fmt.Fprintf(&sb, "Applied %d of %d edits to %s (%s)", applied, len(params.Edits), path, change.Stat())
	}
	for _, n := range notes {
		sb.WriteString("\n" + n)
	}
	if len(failures) > 0 {
		sb.WriteString("\n\nFailed edits:\n")
		sb.WriteString(strings.Join(failures, "\n"))
	}
	if change.Patch != "" {
		sb.WriteString("\n\n")
		sb.WriteString(change.Patch)
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", filepath.Base(path)),
		Output: sb.String(),
		Metadata: map[string]any{
			"file":      path,
			"applied":   applied,
			"requested": len(params.Edits),
			"additions": change.Added,
			"deletions": change.Removed,
			"dryRun":    params.DryRun,
		},
	}, nil
}

// applyEdit replaces edit.OldText in text. note describes a non-exact match.
func applyEdit(text string, edit Edit) (result, note string, err error) {
	if edit.OldText == "" {
		return "", "", fmt.Errorf("old_text is empty")
	}
	if edit.OldText == edit.NewText {
		return "", "", fmt.Errorf("old_text and new_text are identical")
	}

	switch count := strings.Count(text, edit.OldText); {
	case count == 1:
		return strings.Replace(text, edit.OldText, edit.NewText, 1), "", nil
	case count > 1:
		return "", "", fmt.Errorf("old_text appears %d times; include more context to make it unique", count)
	}

	// Retry with old_text and new_text rewritten to the file's line ending,
	// so the rest of the file keeps its own.
	oldText, newText := normalizeLineEndings(edit.OldText), normalizeLineEndings(edit.NewText)
	if strings.Contains(text, "\r\n") {
		oldText, newText = toCRLF(oldText), toCRLF(newText)
	}
	if strings.Count(text, oldText) == 1 {
		return strings.Replace(text, oldText, newText, 1), "matched after line ending normalization", nil
	}

	match, sim := findBestMatch(text, edit.OldText)
	if match != "" && sim >= minFuzzySimilarity && strings.Count(text, match) == 1 {
		return strings.Replace(text, match, edit.NewText, 1),
			fmt.Sprintf("fuzzy match (%.0f%% similarity)", sim*100), nil
	}
	return "", "", fmt.Errorf("old_text not found in file")
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// toCRLF expects LF-only input.
func toCRLF(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// findBestMatch finds the substring most similar to target.
func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	targetLen := len(targetLines)
	bestMatch := ""
	bestSimilarity := 0.0

	for i := 0; i <= len(lines)-targetLen; i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		sim := similarity(block, target)
		if sim > bestSimilarity {
			bestSimilarity = sim
			bestMatch = block
		}
	}

	return bestMatch, bestSimilarity
}

// similarity is the normalized Levenshtein similarity of a and b.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Length ratio stands in for very long inputs.
	if len(a) > 10000 || len(b) > 10000 {
		maxLen := max(len(a), len(b))
		minLen := min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}

	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}

func (t *EditTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
