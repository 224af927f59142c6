package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
)

// mockResponseWriter implements http.Flusher for testing
type mockResponseWriter struct {
	*httptest.ResponseRecorder
	flushed int
}

func (m *mockResponseWriter) Flush() {
	m.flushed++
}

func newMockResponseWriter() *mockResponseWriter {
	return &mockResponseWriter{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

type noFlushWriter struct{}

func (n *noFlushWriter) Header() http.Header       { return http.Header{} }
func (n *noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (n *noFlushWriter) WriteHeader(int)           {}

func TestNewSSEWriter_NoFlusher(t *testing.T) {
	if _, err := newSSEWriter(&noFlushWriter{}); err == nil {
		t.Error("Expected error for writer without Flusher")
	}
}

func TestSSEWriter_Send(t *testing.T) {
	w := newMockResponseWriter()
	sse, err := newSSEWriter(w)
	if err != nil {
		t.Fatalf("newSSEWriter failed: %v", err)
	}

	for _, typ := range []event.EventType{"server.connected", event.ToolCalled} {
		if err := sse.send(StreamEvent{Type: typ, Properties: map[string]string{"tool": "glob"}}); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "id: 1\nevent: message\n") {
		t.Errorf("Expected first message to carry id 1, got: %s", body)
	}
	if !strings.Contains(body, "id: 2\n") {
		t.Errorf("Expected second message to carry id 2, got: %s", body)
	}
	if !strings.Contains(body, `data: {"type":"tool.called","properties":{"tool":"glob"}}`+"\n\n") {
		t.Errorf("Expected data line, got: %s", body)
	}
	if w.flushed != 2 {
		t.Errorf("Expected 2 flushes, got %d", w.flushed)
	}
}

func TestSSEWriter_Heartbeat(t *testing.T) {
	w := newMockResponseWriter()
	sse, _ := newSSEWriter(w)

	if err := sse.heartbeat(); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	if body := w.Body.String(); body != ": heartbeat\n\n" {
		t.Errorf("Expected heartbeat comment, got: %q", body)
	}
	if w.flushed == 0 {
		t.Error("Expected Flush to be called")
	}
}

func TestEventFilter(t *testing.T) {
	tests := []struct {
		query    string
		typ      event.EventType
		expected bool
	}{
		{"", event.CommandExecuted, true},
		{"type=command.executed", event.CommandExecuted, true},
		{"type=command.executed", event.ToolCalled, false},
		{"type=agent.", event.AgentStarted, true},
		{"type=agent.", event.AgentFinished, true},
		{"type=agent.", event.CommandExecuted, false},
		{"type=tool.called,+permission.", event.ApprovalGranted, true},
		{"type=tool.called,+permission.", event.ToolCalled, true},
		{"type=,", event.ToolCalled, false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/events?"+tt.query, nil)
		if got := eventFilter(req)(tt.typ); got != tt.expected {
			t.Errorf("eventFilter(%q)(%s) = %v, want %v", tt.query, tt.typ, got, tt.expected)
		}
	}
}

// readEvents collects stream events from an SSE body until it closes.
func readEvents(resp *http.Response, out chan<- StreamEvent) {
	defer close(out)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err == nil {
			out <- evt
		}
	}
}

func waitForEvent(t *testing.T, events <-chan StreamEvent, typ event.EventType) StreamEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				t.Fatalf("stream closed before %s", typ)
			}
			if evt.Type == typ {
				return evt
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestAllEvents_Stream(t *testing.T) {
	srv := &Server{}
	ts := httptest.NewServer(http.HandlerFunc(srv.allEvents))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"?type=command.", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	events := make(chan StreamEvent, 16)
	go readEvents(resp, events)

	waitForEvent(t, events, "server.connected")

	event.PublishSync(event.Event{Type: event.ToolCalled, Data: event.ToolCalledData{Tool: "filtered"}})
	event.PublishSync(event.Event{
		Type: event.CommandExecuted,
		Data: event.CommandExecutedData{Command: "echo hi", Kind: "command"},
	})

	evt := waitForEvent(t, events, event.CommandExecuted)
	props, ok := evt.Properties.(map[string]any)
	if !ok {
		t.Fatalf("Expected object properties, got %T", evt.Properties)
	}
	if props["command"] != "echo hi" {
		t.Errorf("Expected command 'echo hi', got %v", props["command"])
	}
}
