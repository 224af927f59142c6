// Package tool provides the tools this server exposes, both to MCP clients
// and to sub-agents.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool defines the interface for all tools.
type Tool interface {
	// ID returns the tool name.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool parameters.
	Parameters() json.RawMessage

	// Execute executes the tool with the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool returns an Eino-compatible tool implementation.
	EinoTool() einotool.InvokableTool
}

// CallerMCP identifies calls that arrive over the MCP transport.
const CallerMCP = "mcp"

// Context provides execution context to tools.
type Context struct {
	// Caller is CallerMCP or the run id of the agent making the call.
	Caller string
	// CallID is the model's tool call id, when there is one.
	CallID string
	// WorkDir resolves relative paths. Empty means the tool's default.
	WorkDir string
	Extra   map[string]any
}

// Result represents the output of a tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// einoToolWrapper wraps a Tool to implement Eino's InvokableTool interface.
type einoToolWrapper struct {
	tool Tool
}

// Info returns the tool information.
func (w *einoToolWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return Info(w.tool), nil
}

// InvokableRun executes the tool. Failures come back as "Error: ..." text
// rather than an error so the model can read them.
func (w *einoToolWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	output, _ := Invoke(ctx, w.tool, json.RawMessage(argsJSON), &Context{Caller: CallerMCP})
	return output, nil
}

// Info builds the Eino tool info for t.
func Info(t Tool) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        t.ID(),
		Desc:        t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(parseJSONSchemaToParams(t.Parameters())),
	}
}

type jsonSchemaProperty struct {
	Type        string                         `json:"type"`
	Description string                         `json:"description"`
	Enum        []string                       `json:"enum"`
	Items       *jsonSchemaProperty            `json:"items"`
	Properties  map[string]*jsonSchemaProperty `json:"properties"`
	Required    []string                       `json:"required"`
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var root jsonSchemaProperty
	if err := json.Unmarshal(schemaJSON, &root); err != nil {
		return nil
	}
	return convertProperties(root.Properties, root.Required)
}

func convertProperties(props map[string]*jsonSchemaProperty, required []string) map[string]*schema.ParameterInfo {
	requiredSet := make(map[string]bool, len(required))
	for _, r := range required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, prop := range props {
		info := convertProperty(prop)
		info.Required = requiredSet[name]
		params[name] = info
	}
	return params
}

func convertProperty(prop *jsonSchemaProperty) *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type: schema.String,
		Desc: prop.Description,
		Enum: prop.Enum,
	}
	switch prop.Type {
	case "integer":
		info.Type = schema.Integer
	case "number":
		info.Type = schema.Number
	case "boolean":
		info.Type = schema.Boolean
	case "array":
		info.Type = schema.Array
		if prop.Items != nil {
			info.ElemInfo = convertProperty(prop.Items)
		}
	case "object":
		info.Type = schema.Object
		info.SubParams = convertProperties(prop.Properties, prop.Required)
	}
	return info
}
