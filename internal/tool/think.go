package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

const thinkDescription = `Use this tool to think about something. It does not obtain new information or change anything; it only records the thought.

Use it when complex reasoning or a plan is needed before acting, for example after reading several files and before deciding which edits to make.`

// ThinkTool implements think.
type ThinkTool struct{}

// ThinkInput represents the input for think.
type ThinkInput struct {
	Thought string `json:"thought"`
}

// NewThinkTool creates the think tool.
func NewThinkTool() *ThinkTool {
	return &ThinkTool{}
}

func (t *ThinkTool) ID() string          { return "think" }
func (t *ThinkTool) Description() string { return thinkDescription }

func (t *ThinkTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"thought": {
				"type": "string",
				"description": "The thought to record"
			}
		},
		"required": ["thought"]
	}`)
}

func (t *ThinkTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ThinkInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Thought) == "" {
		return nil, fmt.Errorf("thought must not be empty")
	}
	return &Result{
		Title:  "Thought",
		Output: "Thought recorded. Continue with the next step.",
		Metadata: map[string]any{
			"length": len(params.Thought),
		},
	}, nil
}

func (t *ThinkTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
