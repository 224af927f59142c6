//go:build !windows

package command_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/mcp-claude-code/internal/command"
)

var _ = Describe("Executor", func() {
	var (
		ctx      context.Context
		executor *command.Executor
	)

	BeforeEach(func() {
		ctx = context.Background()
		executor = command.NewExecutor(nil)
	})

	DescribeTable("blacklist",
		func(line string, allowed bool) {
			Expect(executor.IsCommandAllowed(line)).To(Equal(allowed))
		},
		Entry("plain listing", "ls -la", true),
		Entry("grep with quoted pattern", `grep -n "func main" main.go`, true),
		Entry("excluded first word", "shutdown -h now", false),
		Entry("excluded through absolute path", "/usr/bin/sudo ls", false),
		Entry("background operator", "sleep 1 &", false),
		Entry("or operator", "true || false", false),
		Entry("append redirect", "echo x >> log", false),
		Entry("parameter expansion", "echo ${PATH}", false),
	)

	Context("when a command runs past its timeout", func() {
		It("returns -1 and leaves no process behind", func() {
			pidFile := filepath.Join(GinkgoT().TempDir(), "pid")
			script := "echo $$ > " + pidFile + "\nsleep 30\n"

			start := time.Now()
			res := executor.ExecuteScript(ctx, script, "sh", command.Options{Timeout: 300 * time.Millisecond})

			Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))
			Expect(res.ReturnCode).To(Equal(command.TimeoutReturnCode))
			Expect(res.ErrorMessage).To(ContainSubstring("timed out"))

			raw, err := os.ReadFile(pidFile)
			Expect(err).NotTo(HaveOccurred())
			pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
			Expect(err).NotTo(HaveOccurred())

			err = syscall.Kill(pid, 0)
			Expect(errors.Is(err, syscall.ESRCH)).To(BeTrue(), "process %d is still running", pid)
		})
	})

	Context("when several commands run at once", func() {
		It("keeps their results separate", func() {
			results := make([]*command.Result, 8)
			done := make(chan int, len(results))
			for i := range results {
				go func(i int) {
					defer GinkgoRecover()
					results[i] = executor.ExecuteCommand(ctx, "echo "+strconv.Itoa(i), command.Options{})
					done <- i
				}(i)
			}
			for range results {
				Eventually(done).Should(Receive())
			}
			for i, res := range results {
				Expect(res.IsSuccess()).To(BeTrue())
				Expect(res.Stdout).To(Equal(strconv.Itoa(i) + "\n"))
			}
		})
	})
})
