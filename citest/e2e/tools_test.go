package e2e_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/mcp-claude-code/citest/testutil"
)

var _ = Describe("Tools over SSE", func() {
	It("lists every registered tool", func() {
		result, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		var names []string
		for _, t := range result.Tools {
			names = append(names, t.Name)
		}
		Expect(names).To(ConsistOf(testServer.Tools.IDs()))
		Expect(names).To(ContainElements("read_files", "run_command", "dispatch_agent"))
	})

	It("reads files inside the workspace", func() {
		out, isError := callTool("read_files", map[string]any{
			"paths": []string{filepath.Join(testServer.WorkDir, "README.md")},
		})
		Expect(isError).To(BeFalse())
		Expect(out).To(ContainSubstring("The answer is 42."))
	})

	It("refuses excluded files", func() {
		out, isError := callTool("read_files", map[string]any{
			"paths": []string{filepath.Join(testServer.WorkDir, "secrets", "token.key")},
		})
		Expect(isError).To(BeTrue())
		Expect(out).To(HavePrefix("Error:"))
		Expect(out).NotTo(ContainSubstring("do-not-read"))
	})

	It("refuses paths outside the allowed directories", func() {
		out, isError := callTool("get_file_info", map[string]any{"path": "/etc/passwd"})
		Expect(isError).To(BeTrue())
		Expect(out).To(HavePrefix("Error:"))
	})

	It("runs commands in the workspace", func() {
		out, isError := callTool("run_command", map[string]any{
			"command": "echo from-e2e",
			"cwd":     testServer.WorkDir,
		})
		Expect(isError).To(BeFalse())
		Expect(out).To(ContainSubstring("from-e2e"))
	})

	It("blocks blacklisted commands", func() {
		out, isError := callTool("run_command", map[string]any{
			"command": "rm -rf " + testServer.WorkDir,
			"cwd":     testServer.WorkDir,
		})
		Expect(isError).To(BeTrue())
		Expect(out).To(HavePrefix("Error:"))
		Expect(filepath.Join(testServer.WorkDir, "README.md")).To(BeAnExistingFile())
	})

	It("edits files and reports the change", func() {
		Expect(testutil.WriteFile(testServer.WorkDir, "notes/edit.txt", "alpha\nbeta\n")).To(Succeed())

		out, isError := callTool("edit_file", map[string]any{
			"path": filepath.Join(testServer.WorkDir, "notes", "edit.txt"),
			"edits": []map[string]any{
				{"old_text": "beta", "new_text": "gamma"},
			},
		})
		Expect(isError).To(BeFalse(), out)

		content, isError := callTool("read_files", map[string]any{
			"paths": []string{filepath.Join(testServer.WorkDir, "notes", "edit.txt")},
		})
		Expect(isError).To(BeFalse())
		Expect(content).To(ContainSubstring("gamma"))
		Expect(content).NotTo(ContainSubstring("beta"))
	})
})
