package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the server exposes",
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, workDir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)

	a, err := newApp(cmd.Context(), cfg, workDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSUB-AGENT\tDESCRIPTION\t")
	for _, t := range a.tools.List() {
		sub := "no"
		if a.agents.Profile().ToolEnabled(t.ID()) {
			sub = "yes"
		}
		desc, _, _ := strings.Cut(t.Description(), "\n")
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", t.ID(), sub, desc)
	}
	return w.Flush()
}
