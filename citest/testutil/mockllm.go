package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockLLMServer mimics the OpenAI chat completions API.
type MockLLMServer struct {
	server *httptest.Server
	config *MockLLMConfig

	mu       sync.Mutex
	requests []MockRequest
	seq      int
}

// MockRequest records one chat completion request.
type MockRequest struct {
	Timestamp time.Time
	Path      string
	Messages  []MockMessage
	Tools     []string
}

// MockMessage is the part of a request message the mock looks at.
type MockMessage struct {
	Role       string
	Content    string
	ToolCallID string
}

// LastUserPrompt returns the content of the latest user message.
func (r MockRequest) LastUserPrompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// HasTool reports whether the request offered the named tool.
func (r MockRequest) HasTool(name string) bool {
	for _, t := range r.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// NewMockLLMServer starts a mock LLM. A nil config uses DefaultMockLLMConfig.
func NewMockLLMServer(config *MockLLMConfig) *MockLLMServer {
	if config == nil {
		config = DefaultMockLLMConfig()
	}
	m := &MockLLMServer{config: config}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("/chat/completions", m.handleChatCompletions)
	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the OpenAI-compatible base URL.
func (m *MockLLMServer) URL() string {
	return m.server.URL + "/v1"
}

// Close shuts down the mock server.
func (m *MockLLMServer) Close() {
	m.server.Close()
}

// Requests returns a copy of the recorded requests.
func (m *MockLLMServer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reset forgets recorded requests and restarts tool call numbering.
func (m *MockLLMServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.seq = 0
}

type chatRequest struct {
	Messages []struct {
		Role       string          `json:"role"`
		Content    json.RawMessage `json:"content"`
		ToolCallID string          `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
	Stream bool `json:"stream"`
}

func (m *MockLLMServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Stream {
		http.Error(w, "streaming is not supported by the mock", http.StatusBadRequest)
		return
	}

	rec := MockRequest{Timestamp: time.Now(), Path: r.URL.Path}
	for _, msg := range req.Messages {
		rec.Messages = append(rec.Messages, MockMessage{
			Role:       msg.Role,
			Content:    messageText(msg.Content),
			ToolCallID: msg.ToolCallID,
		})
	}
	for _, t := range req.Tools {
		rec.Tools = append(rec.Tools, t.Function.Name)
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	writeCompletion(w, seq, m.respond(rec))
}

// messageText accepts both a plain string and an array of text parts.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

type mockReply struct {
	content  string
	toolName string
	toolArgs string
}

// respond answers a tool result with a summary of it, otherwise applies
// the first matching rule to the latest user prompt.
func (m *MockLLMServer) respond(req MockRequest) mockReply {
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == "tool" {
		return mockReply{content: m.config.Defaults.Summary + "\n" + req.Messages[n-1].Content}
	}

	rule := m.config.FindRule(req.LastUserPrompt(), req.Tools)
	if rule == nil {
		return mockReply{content: m.config.Defaults.Fallback}
	}
	if rule.Tool == "" {
		return mockReply{content: rule.Response}
	}
	args, err := json.Marshal(rule.Arguments)
	if err != nil {
		return mockReply{content: fmt.Sprintf("bad arguments in rule %s: %v", rule.Name, err)}
	}
	return mockReply{content: rule.Response, toolName: rule.Tool, toolArgs: string(args)}
}

func writeCompletion(w http.ResponseWriter, seq int, reply mockReply) {
	message := map[string]any{
		"role":    "assistant",
		"content": reply.content,
	}
	finishReason := "stop"
	if reply.toolName != "" {
		message["tool_calls"] = []map[string]any{{
			"id":   fmt.Sprintf("call_mock_%03d", seq),
			"type": "function",
			"function": map[string]any{
				"name":      reply.toolName,
				"arguments": reply.toolArgs,
			},
		}}
		finishReason = "tool_calls"
	}

	response := map[string]any{
		"id":      fmt.Sprintf("chatcmpl-mock-%d", seq),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "mock-gpt",
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": finishReason,
		}},
		"usage": map[string]any{
			"prompt_tokens":     100,
			"completion_tokens": 50,
			"total_tokens":      150,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}
