package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/uivar/uivar/internal/metadata"
)

var patchCmd = &cobra.Command{
	Use:   "patch <variant-id> [patch-file]",
	Short: "Apply a unified diff to a variant",
	Long: `Apply unified-diff text to a variant's worktree and commit it.

The patch is read from the named file, or from stdin when no file is
given. A 3-way apply is tried first so patches still land when the
variant has diverged from the base.

Examples:
  uivar patch 001 change.diff
  git diff | uivar patch 001`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPatch,
}

func runPatch(cmd *cobra.Command, args []string) error {
	variantID := args[0]
	if !metadata.ValidVariantID(variantID) {
		return fmt.Errorf("invalid variant id %q (expected 3 digits, e.g. 001)", variantID)
	}

	var patchText []byte
	var err error
	if len(args) == 2 {
		patchText, err = os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read patch file: %w", err)
		}
	} else {
		patchText, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read patch from stdin: %w", err)
		}
	}
	if len(patchText) == 0 {
		return fmt.Errorf("empty patch")
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.ApplyPatch(variantID, string(patchText)); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}

	successColor.Printf("✓ Patch applied to variant %s\n", variantID)
	return nil
}
