// Package provider builds the chat model sub-agents talk to.
//
// A Provider wraps an Eino model.ToolCallingChatModel for one backend:
//
//   - openai: OpenAI and OpenAI-compatible endpoints (AGENT_BASE_URL)
//   - anthropic: Claude models through the Anthropic API
//   - ark: Volcengine ARK endpoints
//
// New picks the backend from AgentConfig.Provider, or from a
// "provider/model" prefix on AgentConfig.Model, and reads the API key from
// the config or the provider's environment variable (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, ARK_API_KEY):
//
//	p, err := provider.New(ctx, cfg.Agent)
//	if err != nil {
//		return err
//	}
//	reply, err := p.ChatModel().Generate(ctx, msgs)
//
// Additional backends can be added with Register.
package provider
