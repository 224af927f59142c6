package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
	"github.com/opencode-ai/mcp-claude-code/internal/storage"
)

var operations = []string{permission.OpRead, permission.OpWrite, permission.OpEdit, permission.OpExecute}

var approveCmd = &cobra.Command{
	Use:   "approve PATH OPERATION",
	Short: "Approve an operation on a path for a running server",
	Long: `Record an approval in the persisted permission state.

A server started with the same --state-dir watches that state and picks
the approval up immediately. Approvals expire after the operation timeout.`,
	Args: cobra.ExactArgs(2),
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.StateDir == "" {
		return fmt.Errorf("approve needs --state-dir (or state_dir in the config file)")
	}

	op := strings.ToLower(strings.TrimSpace(args[1]))
	if !slices.Contains(operations, op) {
		return fmt.Errorf("unknown operation %q (expected one of %s)", args[1], strings.Join(operations, ", "))
	}

	store := permission.NewStore(storage.New(cfg.StateDir))
	key, err := store.Approve(cmd.Context(), args[0], op)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Approved %s on %s\n", op, key)
	return nil
}
