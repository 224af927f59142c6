package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
)

// ErrorPrefix starts every failed tool output.
const ErrorPrefix = "Error: "

// Invoke runs t and turns every failure, panics included, into an
// "Error: ..." string. failed reports whether that happened.
func Invoke(ctx context.Context, t Tool, input json.RawMessage, toolCtx *Context) (output string, failed bool) {
	if toolCtx == nil {
		toolCtx = &Context{Caller: CallerMCP}
	}
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("tool", t.ID()).
				Interface("panic", r).
				Msg("Tool panicked")
			output, failed = fmt.Sprintf("%stool %s failed unexpectedly: %v", ErrorPrefix, t.ID(), r), true
		}

		logging.Debug().
			Str("tool", t.ID()).
			Str("caller", toolCtx.Caller).
			Bool("failed", failed).
			Dur("duration", time.Since(start)).
			Msg("Tool call finished")

		event.Publish(event.Event{
			Type: event.ToolCalled,
			Data: event.ToolCalledData{
				Tool:     t.ID(),
				Caller:   toolCtx.Caller,
				IsError:  failed,
				Duration: time.Since(start).Seconds(),
			},
		})
	}()

	result, err := t.Execute(ctx, input, toolCtx)
	if err != nil {
		return ErrorPrefix + err.Error(), true
	}
	if result == nil {
		return "", false
	}
	return result.Output, false
}

// decodeInput unmarshals tool arguments with a uniform error message.
func decodeInput(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
