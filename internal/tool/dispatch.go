package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
)

// DispatchToolID is the name of the sub-agent tool. Sub-agents never get it.
const DispatchToolID = "dispatch_agent"

const dispatchDescription = `Launch one or more sub-agents that work on tasks autonomously.

Usage:
- prompt is a task description, or an array of task descriptions to run in parallel
- Each agent can read, search and run commands inside the allowed directories
- Agents are stateless: include everything they need in the prompt
- The result contains each agent's final answer, labelled when there are several`

// Dispatcher runs sub-agents for dispatch_agent. prompt is the raw
// argument: a string or a list of strings.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt any) (string, error)
}

// DispatchTool implements dispatch_agent.
type DispatchTool struct {
	dispatcher Dispatcher
}

// DispatchInput represents the input for dispatch_agent.
type DispatchInput struct {
	Prompt any `json:"prompt"`
}

// NewDispatchTool creates the dispatch_agent tool.
func NewDispatchTool(d Dispatcher) *DispatchTool {
	return &DispatchTool{dispatcher: d}
}

func (t *DispatchTool) ID() string          { return DispatchToolID }
func (t *DispatchTool) Description() string { return dispatchDescription }

func (t *DispatchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {
				"oneOf": [
					{"type": "string"},
					{"type": "array", "items": {"type": "string"}}
				],
				"description": "Task for the agent, or a list of tasks for parallel agents"
			}
		},
		"required": ["prompt"]
	}`)
}

func (t *DispatchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	if t.dispatcher == nil {
		return nil, fmt.Errorf("agent dispatch is not configured")
	}
	var params DispatchInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	out, err := t.dispatcher.Dispatch(ctx, params.Prompt)
	if err != nil {
		return nil, err
	}
	return &Result{Title: "Agent result", Output: out}, nil
}

func (t *DispatchTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
