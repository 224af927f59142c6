package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
)

// LimitNotice is sent to an agent that has used up its iterations or tool
// calls, right before its last model call.
const LimitNotice = "You have reached the limit of tool calls and iterations for this task. " +
	"Do not call any more tools. Give your final answer now, based on what you have found so far."

const noFinalAnswer = "The agent reached its limits without producing a final answer."

// run is the conversation state of one agent. It lives for one Call.
type run struct {
	id       string
	index    int
	messages []*schema.Message
	log      zerolog.Logger

	toolUses   int
	iterations int
	hitLimit   bool
}

// runAgent drives one agent until it answers without tool calls or hits a
// cap, in which case exactly one more model call is made.
func (o *Orchestrator) runAgent(ctx context.Context, p *plan, index int, prompt string) (text string, err error) {
	r := &run{
		id:    ulid.Make().String(),
		index: index,
		messages: []*schema.Message{
			schema.SystemMessage(p.systemPrompt),
			schema.UserMessage(prompt),
		},
	}
	r.log = logging.Component("agent").With().Str("run", r.id).Logger()
	start := time.Now()

	r.log.Info().
		Int("index", index).
		Int("tools", len(p.tools.IDs())).
		Msg("Agent started")
	event.Publish(event.Event{
		Type: event.AgentStarted,
		Data: event.AgentStartedData{RunID: r.id, Index: index, Prompt: prompt},
	})

	defer func() {
		o.doomLoop.Forget(r.id)

		data := event.AgentFinishedData{
			RunID:      r.id,
			Index:      index,
			Iterations: r.iterations,
			ToolUses:   r.toolUses,
			HitLimit:   r.hitLimit,
			Duration:   time.Since(start).Seconds(),
		}
		logEvent := r.log.Info()
		if err != nil {
			data.Error = err.Error()
			logEvent = r.log.Warn().Err(err)
		}
		logEvent.
			Int("iterations", r.iterations).
			Int("tool_uses", r.toolUses).
			Bool("hit_limit", r.hitLimit).
			Dur("duration", time.Since(start)).
			Msg("Agent finished")
		event.Publish(event.Event{Type: event.AgentFinished, Data: data})
	}()
	// Runs before the deferred report above, so a panic is recorded as
	// this agent's error and never reaches sibling agents.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("agent panicked: %v", rec)
		}
	}()

	for r.iterations < o.cfg.MaxIterations && r.toolUses < o.cfg.MaxToolUses {
		reply, err := o.generate(ctx, p.model, r.messages)
		if err != nil {
			return "", err
		}
		r.iterations++

		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = "call_" + ulid.Make().String()
			}
		}
		r.messages = append(r.messages, reply)

		for _, call := range reply.ToolCalls {
			var output string
			if r.toolUses >= o.cfg.MaxToolUses {
				output = tool.ErrorPrefix + "tool use limit reached, this call was not executed"
			} else {
				output = o.executeTool(ctx, p, r, call)
				r.toolUses++
			}
			r.messages = append(r.messages, schema.ToolMessage(output, call.ID))
		}
	}

	r.hitLimit = true
	r.log.Debug().
		Int("iterations", r.iterations).
		Int("tool_uses", r.toolUses).
		Msg("Agent hit its limits, requesting final answer")

	// The closing instruction goes in as a user turn; some providers reject
	// a system message after the conversation has started.
	r.messages = append(r.messages, schema.UserMessage(LimitNotice))
	reply, err := o.generate(ctx, p.model, r.messages)
	if err != nil {
		return "", err
	}
	r.iterations++

	if reply.Content == "" {
		return noFinalAnswer, nil
	}
	return reply.Content, nil
}

// executeTool runs one tool call. Every failure comes back as an
// "Error: ..." string for the model to read.
func (o *Orchestrator) executeTool(ctx context.Context, p *plan, r *run, call schema.ToolCall) string {
	name := call.Function.Name
	t, ok := p.tools.Get(name)
	if !ok {
		msg := fmt.Sprintf("%stool %q is not available to this agent.", tool.ErrorPrefix, name)
		if suggestion := p.tools.Suggest(name); suggestion != "" {
			msg += fmt.Sprintf(" Did you mean %q?", suggestion)
		}
		return msg
	}

	args := call.Function.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return fmt.Sprintf("%sinvalid arguments for %s: not valid JSON", tool.ErrorPrefix, name)
	}

	if o.doomLoop.Observe(r.id, name, args) {
		r.log.Warn().Str("tool", name).Msg("Repeated identical tool call")
		return fmt.Sprintf("%s%s was called with the same arguments several times in a row. "+
			"Try a different approach or give your final answer.", tool.ErrorPrefix, name)
	}

	output, _ := tool.Invoke(ctx, t, json.RawMessage(args), &tool.Context{
		Caller:  r.id,
		CallID:  call.ID,
		WorkDir: o.workDir,
	})
	return output
}
