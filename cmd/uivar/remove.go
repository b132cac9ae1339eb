package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uivar/uivar/internal/metadata"
)

var removeCmd = &cobra.Command{
	Use:   "remove <variant-id>",
	Short: "Remove a variant and its worktree",
	Long: `Remove a variant: stop its preview if running, delete the worktree,
delete the ui-var branch, and clear the metadata record.

Removal is best-effort and idempotent; removing an unknown id is a
no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	variantID := args[0]
	if !metadata.ValidVariantID(variantID) {
		return fmt.Errorf("invalid variant id %q (expected 3 digits, e.g. 001)", variantID)
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Remove(variantID); err != nil {
		return fmt.Errorf("remove variant %s: %w", variantID, err)
	}

	successColor.Printf("✓ Removed variant %s\n", variantID)
	return nil
}
