package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/mcp-claude-code/internal/command"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List script languages and whether their interpreters are installed",
	RunE:  runLanguages,
}

func runLanguages(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tINTERPRETER\tEXTENSION\tINSTALLED\t")
	for _, lang := range command.Languages() {
		installed := "no"
		if command.IsLanguageInstalled(ctx, lang.Name) {
			installed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", lang.Name, lang.Interpreter, lang.Extension, installed)
	}
	return w.Flush()
}
