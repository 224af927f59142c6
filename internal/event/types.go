package event

// CommandExecutedData is the data for command.executed events.
type CommandExecutedData struct {
	Command    string  `json:"command"`
	Kind       string  `json:"kind"` // "command", "script" or "file"
	Cwd        string  `json:"cwd,omitempty"`
	ReturnCode int     `json:"return_code"`
	TimedOut   bool    `json:"timed_out,omitempty"`
	Rejected   bool    `json:"rejected,omitempty"`
	Duration   float64 `json:"duration_seconds"`
}

// ToolCalledData is the data for tool.called events.
type ToolCalledData struct {
	Tool     string  `json:"tool"`
	Caller   string  `json:"caller"` // "mcp" or an agent run id
	IsError  bool    `json:"is_error"`
	Duration float64 `json:"duration_seconds"`
}

// AgentStartedData is the data for agent.started events.
type AgentStartedData struct {
	RunID  string `json:"run_id"`
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
}

// AgentFinishedData is the data for agent.finished events.
type AgentFinishedData struct {
	RunID      string  `json:"run_id"`
	Index      int     `json:"index"`
	Iterations int     `json:"iterations"`
	ToolUses   int     `json:"tool_uses"`
	HitLimit   bool    `json:"hit_limit,omitempty"`
	Error      string  `json:"error,omitempty"`
	Duration   float64 `json:"duration_seconds"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File string `json:"file"`
}

// ApprovalGrantedData is the data for permission.approved events.
type ApprovalGrantedData struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
}

// ApprovalsReloadedData is the data for permission.reloaded events.
type ApprovalsReloadedData struct {
	Source   string `json:"source"`
	Imported int    `json:"imported"`
}
