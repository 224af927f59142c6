package e2e_test

import (
	"encoding/json"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/mcp-claude-code/citest/testutil"
	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

var _ = Describe("dispatch_agent", func() {
	BeforeEach(func() {
		testServer.MockLLM.Reset()
	})

	It("answers a prompt that needs no tools", func() {
		out, isError := callTool("dispatch_agent", map[string]any{"prompt": "What is 2+2?"})
		Expect(isError).To(BeFalse(), out)
		Expect(out).To(MatchRegexp(`^Agent execution completed in \d+\.\d{2}s\n\n4$`))
		Expect(testServer.MockLLM.Requests()).To(HaveLen(1))
	})

	It("lets the sub-agent read files and answers with what it found", func() {
		out, isError := callTool("dispatch_agent", map[string]any{"prompt": "Read the README and tell me the answer"})
		Expect(isError).To(BeFalse(), out)
		Expect(out).To(HavePrefix("Agent execution completed in"))
		Expect(out).To(ContainSubstring("Here is what I found:"))
		Expect(out).To(ContainSubstring("The answer is 42."))

		requests := testServer.MockLLM.Requests()
		Expect(requests).To(HaveLen(2))
		last := requests[1].Messages[len(requests[1].Messages)-1]
		Expect(last.Role).To(Equal("tool"))
		Expect(last.ToolCallID).To(Equal("call_mock_001"))
	})

	It("offers sub-agents a restricted tool set", func() {
		_, isError := callTool("dispatch_agent", map[string]any{"prompt": "What is 2+2?"})
		Expect(isError).To(BeFalse())

		requests := testServer.MockLLM.Requests()
		Expect(requests).NotTo(BeEmpty())
		req := requests[0]
		Expect(req.Tools).To(ContainElements("read_files", "glob", "search_content", "run_command"))
		Expect(req.HasTool("dispatch_agent")).To(BeFalse())
		Expect(req.HasTool("write_file")).To(BeFalse())
		Expect(req.HasTool("edit_file")).To(BeFalse())

		Expect(req.Messages[0].Role).To(Equal("system"))
		Expect(req.Messages[0].Content).To(ContainSubstring(testServer.WorkDir))
	})

	It("runs several prompts and keeps their order", func() {
		out, isError := callTool("dispatch_agent", map[string]any{
			"prompt": []string{"What is 2+2?", "Read the README", "Something unrelated"},
		})
		Expect(isError).To(BeFalse(), out)
		Expect(out).To(HavePrefix("Multi-agent execution completed in"))
		Expect(out).To(ContainSubstring("(3 agents)"))
		Expect(out).To(ContainSubstring("Agent 1 Result:\n4\n\n---\n\nAgent 2 Result:\n"))
		Expect(out).To(ContainSubstring("The answer is 42."))
		Expect(out).To(ContainSubstring("Agent 3 Result:\nI looked into it and have nothing further to add."))
	})

	It("lets the sub-agent run commands", func() {
		out, isError := callTool("dispatch_agent", map[string]any{"prompt": "Please echo something"})
		Expect(isError).To(BeFalse(), out)
		Expect(out).To(ContainSubstring("sub-agent was here"))
	})

	It("rejects invalid prompts without calling the model", func() {
		for _, prompt := range []any{"", "   ", []string{}, []any{"ok", 3}} {
			out, isError := callTool("dispatch_agent", map[string]any{"prompt": prompt})
			Expect(isError).To(BeTrue(), "prompt %#v", prompt)
			Expect(out).To(HavePrefix("Error:"))
		}
		Expect(testServer.MockLLM.Requests()).To(BeEmpty())
	})

	It("publishes agent lifecycle events", func() {
		events, err := testServer.FollowEvents(ctx, "agent.")
		Expect(err).NotTo(HaveOccurred())
		defer events.Close()

		_, isError := callTool("dispatch_agent", map[string]any{"prompt": "Read the README"})
		Expect(isError).To(BeFalse())

		Eventually(events.Types, 5*time.Second, 50*time.Millisecond).
			Should(ContainElements("agent.started", "agent.finished"))

		var finished struct {
			Iterations int `json:"iterations"`
			ToolUses   int `json:"tool_uses"`
		}
		for _, e := range events.Events() {
			if e.Type == "agent.finished" {
				Expect(json.Unmarshal(e.Properties, &finished)).To(Succeed())
			}
		}
		Expect(finished.Iterations).To(Equal(2))
		Expect(finished.ToolUses).To(Equal(1))
	})
})

var _ = Describe("dispatch_agent with the explore profile", Ordered, func() {
	var explore *testutil.TestServer

	BeforeAll(func() {
		var err error
		explore, err = testutil.StartTestServer(testutil.WithAgentConfig(func(a *types.AgentConfig) {
			a.Profile = "explore"
		}))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(explore.Stop)
	})

	It("does not offer run_command", func() {
		s, err := explore.Connect(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, err = s.CallTool(ctx, &sdkmcp.CallToolParams{
			Name:      "dispatch_agent",
			Arguments: map[string]any{"prompt": "Please echo something"},
		})
		Expect(err).NotTo(HaveOccurred())

		requests := explore.MockLLM.Requests()
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].HasTool("run_command")).To(BeFalse())
		Expect(requests[0].HasTool("read_files")).To(BeTrue())
	})
})
