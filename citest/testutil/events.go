package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// StreamEvent is one decoded message from the /events stream.
type StreamEvent struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// EventStream follows /events in the background.
type EventStream struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	events []StreamEvent
}

// FollowEvents subscribes to /events, optionally filtered by type, and
// returns once the server.connected greeting has arrived.
func (ts *TestServer) FollowEvents(ctx context.Context, types ...string) (*EventStream, error) {
	u := ts.BaseURL + "/events"
	if len(types) > 0 {
		u += "?type=" + url.QueryEscape(strings.Join(types, ","))
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s := &EventStream{cancel: cancel, done: make(chan struct{})}
	connected := make(chan struct{})
	go func() {
		defer close(s.done)
		defer resp.Body.Close()

		var once sync.Once
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var e StreamEvent
			if json.Unmarshal([]byte(data), &e) != nil {
				continue
			}
			if e.Type == "server.connected" {
				once.Do(func() { close(connected) })
				continue
			}
			s.mu.Lock()
			s.events = append(s.events, e)
			s.mu.Unlock()
		}
	}()

	select {
	case <-connected:
		return s, nil
	case <-s.done:
		cancel()
		return nil, fmt.Errorf("event stream closed before greeting")
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// Events returns the events received so far.
func (s *EventStream) Events() []StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StreamEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Types returns the type of every event received so far.
func (s *EventStream) Types() []string {
	events := s.Events()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

// Close stops following the stream.
func (s *EventStream) Close() {
	s.cancel()
	<-s.done
}
