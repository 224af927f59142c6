package tool

import (
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/mcp-claude-code/internal/command"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any tool with the same ID.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", tool.ID()).Msg("Registering tool")
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools sorted by ID.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID() < tools[j].ID() })
	return tools
}

// IDs returns all tool IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter returns a new registry holding the tools for which keep is true.
func (r *Registry) Filter(keep func(id string) bool) *Registry {
	out := NewRegistry()
	for _, t := range r.List() {
		if keep(t.ID()) {
			out.tools[t.ID()] = t
		}
	}
	return out
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	list := r.List()
	tools := make([]einotool.BaseTool, 0, len(list))
	for _, t := range list {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	list := r.List()
	infos := make([]*schema.ToolInfo, 0, len(list))
	for _, t := range list {
		infos = append(infos, Info(t))
	}
	return infos
}

// Suggest returns the registered ID closest to name, or "" when nothing is
// close enough to be a plausible typo.
func (r *Registry) Suggest(name string) string {
	best, bestDist := "", -1
	for _, id := range r.IDs() {
		d := levenshtein.ComputeDistance(name, id)
		if bestDist < 0 || d < bestDist {
			best, bestDist = id, d
		}
	}
	if best == "" || bestDist > max(2, len(name)/3) {
		return ""
	}
	return best
}

// DefaultRegistry creates a registry with every built-in tool except
// dispatch_agent, which needs an orchestrator (see RegisterDispatchTool).
func DefaultRegistry(gate *permission.Gate, exec *command.Executor, workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewReadTool(gate, workDir))
	r.Register(NewWriteTool(gate, workDir))
	r.Register(NewEditTool(gate, workDir))
	r.Register(NewTreeTool(gate, workDir))
	r.Register(NewInfoTool(gate, workDir))
	r.Register(NewGlobTool(gate, workDir))
	r.Register(NewSearchTool(gate, workDir))

	r.Register(NewRunCommandTool(exec, workDir))
	r.Register(NewRunScriptTool(exec, workDir))
	r.Register(NewScriptTool(exec, workDir))

	r.Register(NewThinkTool())

	logging.Debug().Strs("tools", r.IDs()).Msg("Default registry created")
	return r
}

// RegisterDispatchTool registers dispatch_agent backed by d.
func (r *Registry) RegisterDispatchTool(d Dispatcher) {
	r.Register(NewDispatchTool(d))
}
