package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	cleanupDryRun  bool
	cleanupHistory bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned worktrees and stale lock files",
	Long: `Clean up leftovers from crashed or interrupted runs.

This command:
  - Prunes stale git worktree registrations
  - Removes managed worktrees that lost their metadata entry
  - Reclaims abandoned metadata lock files

With --history, journal events older than 30 days are also purged.

Examples:
  uivar cleanup            # Clean up orphans
  uivar cleanup --dry-run  # Show what would be removed
  uivar cleanup --history  # Also purge old journal events`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupHistory, "history", false, "Purge journal events older than 30 days")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	removed := 0

	// Orphans: worktrees under the managed root whose branch no longer
	// maps to a variant record.
	managed, err := mgr.Worktrees().ListManaged()
	if err != nil {
		return fmt.Errorf("list managed worktrees: %w", err)
	}
	for _, wt := range managed {
		if wt.VariantID != "" {
			continue
		}
		if cleanupDryRun {
			fmt.Printf("would remove orphaned worktree %s (%s)\n", wt.Path, wt.Branch)
			continue
		}
		if err := os.RemoveAll(wt.Path); err != nil {
			warnColor.Printf("remove orphaned worktree %s: %v\n", wt.Path, err)
			continue
		}
		successColor.Printf("✓ Removed orphaned worktree %s\n", wt.Path)
		removed++
	}

	if !cleanupDryRun {
		if err := mgr.Worktrees().Prune(); err != nil {
			warnColor.Printf("prune worktree registrations: %v\n", err)
		}
	}

	// Abandoned lock file from a crashed process.
	lockPath := mgr.MetadataPath() + ".lock"
	if fi, err := os.Stat(lockPath); err == nil && time.Since(fi.ModTime()) > time.Minute {
		if cleanupDryRun {
			fmt.Printf("would remove stale lock file %s\n", lockPath)
		} else if err := os.Remove(lockPath); err != nil {
			warnColor.Printf("remove stale lock file: %v\n", err)
		} else {
			successColor.Printf("✓ Removed stale lock file %s\n", lockPath)
			removed++
		}
	}

	if cleanupHistory && !cleanupDryRun {
		if j := mgr.Journal(); j != nil {
			purged, err := j.Purge(30 * 24 * time.Hour)
			if err != nil {
				warnColor.Printf("purge journal: %v\n", err)
			} else if purged > 0 {
				successColor.Printf("✓ Purged %d old journal events\n", purged)
			}
		}
	}

	if cleanupDryRun {
		return nil
	}
	if removed == 0 {
		fmt.Println("Nothing to clean up.")
	}
	return nil
}
