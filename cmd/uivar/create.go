package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createBase string

var createCmd = &cobra.Command{
	Use:   "create [description]",
	Short: "Create a new variant worktree",
	Long: `Create a new variant: a git worktree on a fresh ui-var/<id> branch.

The variant starts from HEAD unless --base names another commit or
branch. The description, if given, becomes part of the branch name.

Examples:
  uivar create "new header"
  uivar create --base origin/main "dark mode"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createBase, "base", "", "Base ref for the variant (default HEAD)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")

	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	result, err := mgr.Create(createBase, description)
	if err != nil {
		return fmt.Errorf("create variant: %w", err)
	}

	successColor.Printf("✓ Created variant %s\n", result.VariantID)
	fmt.Printf("  branch: %s\n", result.Branch)
	fmt.Printf("  path:   %s\n", result.Path)
	fmt.Printf("  base:   %s\n", result.BaseCommit)
	return nil
}
