package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uivar/uivar/internal/metadata"
	"github.com/uivar/uivar/internal/worktree"
)

var (
	mergeTarget   string
	mergeStrategy string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <variant-id>",
	Short: "Merge a variant back and remove it",
	Long: `Merge the variant's branch into the target branch. On success the
variant's worktree, branch, and record are removed.

Strategies:
  merge   named merge commit (default)
  squash  squash the branch into a single commit
  ff      fast-forward only; fails if the target has diverged

A failed merge leaves the variant untouched so conflicts can be
resolved manually in the main checkout.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&mergeTarget, "target", "main", "Branch to merge into")
	mergeCmd.Flags().StringVar(&mergeStrategy, "strategy", "merge", "Merge strategy: merge, squash, or ff")
}

func runMerge(cmd *cobra.Command, args []string) error {
	variantID := args[0]
	if !metadata.ValidVariantID(variantID) {
		return fmt.Errorf("invalid variant id %q (expected 3 digits, e.g. 001)", variantID)
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Merge(variantID, mergeTarget, worktree.Strategy(mergeStrategy)); err != nil {
		return fmt.Errorf("merge variant %s: %w", variantID, err)
	}

	successColor.Printf("✓ Merged variant %s into %s (%s)\n", variantID, mergeTarget, mergeStrategy)
	return nil
}
