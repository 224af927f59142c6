package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
)

// StreamEvent is the JSON payload of one /events message.
type StreamEvent struct {
	Type       event.EventType `json:"type"`
	Properties any             `json:"properties"`
}

// SSEHeartbeatInterval is how often an idle stream gets a comment line.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter frames events for one /events client. Each message carries an
// increasing id so a reader can spot gaps left by dropped events.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
	id uint64
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errors.New("streaming not supported")
	}
	return &sseWriter{w: w, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) send(e StreamEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.id++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: message\ndata: %s\n\n", s.id, payload); err != nil {
		return err
	}
	return s.flush()
}

func (s *sseWriter) heartbeat() error {
	if _, err := io.WriteString(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	return s.flush()
}

// flush goes through ResponseController so wrapped writers from middleware
// still reach the client.
func (s *sseWriter) flush() error {
	if err := s.rc.Flush(); err != nil {
		if f, ok := s.w.(http.Flusher); ok {
			f.Flush()
			return nil
		}
		return err
	}
	return nil
}

// eventFilter parses ?type=a,b into a set. Entries ending in "." match a
// prefix, e.g. "agent." matches agent.started and agent.finished.
func eventFilter(r *http.Request) func(event.EventType) bool {
	raw := strings.TrimSpace(r.URL.Query().Get("type"))
	if raw == "" {
		return func(event.EventType) bool { return true }
	}
	var exact, prefixes []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
		case strings.HasSuffix(t, "."):
			prefixes = append(prefixes, t)
		default:
			exact = append(exact, t)
		}
	}
	return func(et event.EventType) bool {
		for _, t := range exact {
			if string(et) == t {
				return true
			}
		}
		for _, p := range prefixes {
			if strings.HasPrefix(string(et), p) {
				return true
			}
		}
		return false
	}
}

// allEvents streams bus events (command runs, tool calls, agent runs,
// approvals) to the client.
func (srv *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := sse.flush(); err != nil {
		return
	}

	wanted := eventFilter(r)
	events := make(chan event.Event, 32)
	unsub := event.SubscribeAll(func(e event.Event) {
		if !wanted(e.Type) {
			return
		}
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	// Subscribed before this is sent, so nothing after it is missed.
	if err := sse.send(StreamEvent{Type: "server.connected", Properties: map[string]any{}}); err != nil {
		return
	}

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.send(StreamEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.heartbeat(); err != nil {
				return
			}
		}
	}
}
