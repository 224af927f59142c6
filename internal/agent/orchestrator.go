package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/mcp-claude-code/internal/config"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/tool"
	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

// Retry configuration for model calls.
const (
	DefaultMaxRetries    = 2
	RetryInitialInterval = 500 * time.Millisecond
	RetryMaxInterval     = 5 * time.Second
)

// Config holds the limits and model parameters of a sub-agent run.
type Config struct {
	Temperature float64
	MaxTokens   int
	// APITimeout bounds each model call. Zero means no bound.
	APITimeout    time.Duration
	MaxToolUses   int
	MaxIterations int
	// MaxParallel limits concurrent agents in one call. Zero means no limit.
	MaxParallel int
	// MaxRetries is the number of retries for a failed model call.
	MaxRetries    int
	RetryInterval time.Duration
	// Prompt is appended to the generated system prompt.
	Prompt string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Temperature:   config.DefaultTemperature,
		MaxTokens:     config.DefaultMaxTokens,
		APITimeout:    config.DefaultAPITimeout * time.Second,
		MaxToolUses:   config.DefaultMaxToolUses,
		MaxIterations: config.DefaultMaxIterations,
		MaxRetries:    DefaultMaxRetries,
		RetryInterval: RetryInitialInterval,
	}
}

// ConfigFrom builds a Config from the agent section of the server config.
func ConfigFrom(a *types.AgentConfig) Config {
	cfg := DefaultConfig()
	if a == nil {
		return cfg
	}
	cfg.Temperature = a.GetTemperature(cfg.Temperature)
	if a.MaxTokens > 0 {
		cfg.MaxTokens = a.MaxTokens
	}
	if a.APITimeout > 0 {
		cfg.APITimeout = time.Duration(a.APITimeout) * time.Second
	}
	if a.MaxToolUses > 0 {
		cfg.MaxToolUses = a.MaxToolUses
	}
	if a.MaxIterations > 0 {
		cfg.MaxIterations = a.MaxIterations
	}
	if a.MaxParallel > 0 {
		cfg.MaxParallel = a.MaxParallel
	}
	cfg.Prompt = a.Prompt
	return cfg
}

// ModelSource returns the chat model sub-agents talk to. It is called
// lazily so the server can start without provider credentials.
type ModelSource func(ctx context.Context) (model.ToolCallingChatModel, error)

// StaticModel returns a ModelSource that always yields m.
func StaticModel(m model.ToolCallingChatModel) ModelSource {
	return func(context.Context) (model.ToolCallingChatModel, error) { return m, nil }
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProfile sets the sub-agent profile. The default is "general".
func WithProfile(p *Profile) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.profile = p
		}
	}
}

// WithWorkDir sets the directory relative tool paths resolve against.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// Orchestrator drives sub-agents: LLM conversations that may call a
// restricted set of tools until they produce a final answer.
type Orchestrator struct {
	source  ModelSource
	tools   *tool.Registry
	gate    *permission.Gate
	cfg     Config
	profile *Profile
	workDir string

	doomLoop *permission.DoomLoopDetector

	mu    sync.Mutex
	model model.ToolCallingChatModel
}

// New creates an Orchestrator. tools is the full registry; the profile
// decides which of its tools sub-agents see.
func New(source ModelSource, tools *tool.Registry, gate *permission.Gate, cfg Config, opts ...Option) *Orchestrator {
	general, _ := LookupProfile(ProfileGeneral)
	o := &Orchestrator{
		source:   source,
		tools:    tools,
		gate:     gate,
		cfg:      cfg,
		profile:  general,
		doomLoop: permission.NewDoomLoopDetector(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tools == nil {
		o.tools = tool.NewRegistry()
	}
	return o
}

// Profile returns the active sub-agent profile.
func (o *Orchestrator) Profile() *Profile {
	return o.profile
}

// Tools returns the registry sub-agents may use.
func (o *Orchestrator) Tools() *tool.Registry {
	return o.tools.Filter(o.profile.ToolEnabled)
}

// ParsePrompts validates a raw prompt argument: a non-blank string, or a
// non-empty list whose entries are all non-blank strings.
func ParsePrompts(prompt any) ([]string, error) {
	switch v := prompt.(type) {
	case nil:
		return nil, errors.New("prompt is required")
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, errors.New("prompt must not be empty")
		}
		return []string{v}, nil
	case []string:
		return checkPrompts(v)
	case []any:
		prompts := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("prompt %d must be a string, got %T", i+1, item)
			}
			prompts[i] = s
		}
		return checkPrompts(prompts)
	default:
		return nil, fmt.Errorf("prompt must be a string or an array of strings, got %T", prompt)
	}
}

func checkPrompts(prompts []string) ([]string, error) {
	if len(prompts) == 0 {
		return nil, errors.New("prompt array must not be empty")
	}
	for i, p := range prompts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("prompt %d must not be empty", i+1)
		}
	}
	return prompts, nil
}

// Dispatch implements tool.Dispatcher.
func (o *Orchestrator) Dispatch(ctx context.Context, prompt any) (string, error) {
	prompts, err := ParsePrompts(prompt)
	if err != nil {
		return "", err
	}
	return o.Call(ctx, prompts)
}

// plan is what every agent of one Call shares.
type plan struct {
	model        model.ToolCallingChatModel
	tools        *tool.Registry
	systemPrompt string
}

// Call runs one agent per prompt and returns the combined result. Agent
// failures are reported in the text; the error is only set when the
// prompts are invalid or no model is available.
func (o *Orchestrator) Call(ctx context.Context, prompts []string) (string, error) {
	prompts, err := checkPrompts(prompts)
	if err != nil {
		return "", err
	}

	start := time.Now()
	p, err := o.prepare(ctx)
	if err != nil {
		return "", err
	}

	if len(prompts) == 1 {
		out, err := o.runAgent(ctx, p, 0, prompts[0])
		if err != nil {
			return tool.ErrorPrefix + "agent failed: " + err.Error(), nil
		}
		return formatSingle(out, time.Since(start)), nil
	}

	type outcome struct {
		text string
		err  error
	}
	results := make([]outcome, len(prompts))

	g, gCtx := errgroup.WithContext(ctx)
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}
	for i, prompt := range prompts {
		g.Go(func() error {
			text, err := o.runAgent(gCtx, p, i, prompt)
			results[i] = outcome{text: text, err: err}
			return nil
		})
	}
	_ = g.Wait()

	sections := make([]string, len(results))
	for i, r := range results {
		if r.err != nil {
			sections[i] = fmt.Sprintf("Agent %d Error:\n%s", i+1, r.err)
			continue
		}
		sections[i] = fmt.Sprintf("Agent %d Result:\n%s", i+1, r.text)
	}
	return formatMulti(strings.Join(sections, sectionSeparator), len(results), time.Since(start)), nil
}

// prepare resolves the model and binds the tool schema once per Call.
func (o *Orchestrator) prepare(ctx context.Context) (*plan, error) {
	base, err := o.chatModel(ctx)
	if err != nil {
		return nil, err
	}

	tools := o.Tools()
	bound := base
	if infos := tools.ToolInfos(); len(infos) > 0 {
		bound, err = base.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	var allowed []string
	if o.gate != nil {
		allowed = o.gate.AllowedPaths()
	}
	return &plan{
		model:        bound,
		tools:        tools,
		systemPrompt: buildSystemPrompt(tools, allowed, o.profile.Prompt, o.cfg.Prompt),
	}, nil
}

func (o *Orchestrator) chatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.model != nil {
		return o.model, nil
	}
	if o.source == nil {
		return nil, errors.New("no model is configured for sub-agents")
	}
	m, err := o.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	o.model = m
	return m, nil
}

// generate makes one model call, retrying transient failures.
func (o *Orchestrator) generate(ctx context.Context, m model.ToolCallingChatModel, messages []*schema.Message) (*schema.Message, error) {
	var reply *schema.Message
	op := func() error {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.cfg.APITimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.APITimeout)
		}
		defer cancel()

		msg, err := m.Generate(callCtx, messages,
			model.WithTemperature(float32(o.cfg.Temperature)),
			model.WithMaxTokens(o.cfg.MaxTokens),
		)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if msg == nil {
			return backoff.Permanent(errors.New("model returned no message"))
		}
		reply = msg
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.RetryInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = RetryInitialInterval
	}
	b.MaxInterval = RetryMaxInterval
	b.Reset()
	retries := uint64(max(o.cfg.MaxRetries, 0))

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx),
		func(err error, next time.Duration) {
			logging.Warn().Err(err).Dur("retry_in", next).Msg("Model call failed, retrying")
		})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return reply, nil
}
