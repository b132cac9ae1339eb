package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/uivar/uivar/internal/config"
	"github.com/uivar/uivar/internal/git"
	"github.com/uivar/uivar/internal/variant"
)

var rootCmd = &cobra.Command{
	Use:   "uivar",
	Short: "Isolated project variants with live previews",
	Long: `uivar spins up isolated, independently runnable variants of a project.

Each variant gets its own git worktree and branch (ui-var/<id>), a
deterministic dev-server port, and a supervised preview process, so
several takes on the same change can run side by side without touching
the main checkout.

Typical flow:
  uivar create "new header"       # worktree + branch ui-var/001-new-header
  uivar preview start 001         # dev server on the variant's port
  uivar patch 001 < change.diff   # apply a diff to the variant
  uivar merge 001                 # merge back and clean up`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}

// newManager builds the variant manager for the repository containing
// the current directory.
func newManager() (*variant.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	projectPath, err := git.NewRunner(cwd).TopLevel()
	if err != nil {
		return nil, fmt.Errorf("not inside a git repository: %w", err)
	}

	return variant.New(projectPath, cfg)
}

var (
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgCyan)
)
