package worktree

import (
	"errors"
	"fmt"

	"github.com/uivar/uivar/internal/metadata"
)

// Strategy selects how a variant branch is merged into the target.
type Strategy string

const (
	// StrategyMerge creates a named merge commit (--no-ff).
	StrategyMerge Strategy = "merge"
	// StrategySquash squashes the branch and creates a single commit.
	StrategySquash Strategy = "squash"
	// StrategyFF fast-forwards only, failing if the target has diverged.
	StrategyFF Strategy = "ff"
)

// ErrInvalidStrategy is returned for an unrecognized merge strategy.
var ErrInvalidStrategy = errors.New("invalid merge strategy")

// Merge merges a variant's branch into targetBranch using the given
// strategy, then removes the worktree.
//
// The worktree is removed only on success: a failed merge leaves the
// variant and its worktree untouched so the conflicts can be resolved
// manually.
func (m *Manager) Merge(variantID, targetBranch string, strategy Strategy) error {
	branch := m.branchFor(variantID)
	if branch == "" {
		return fmt.Errorf("%w: %s", metadata.ErrVariantNotFound, variantID)
	}

	if err := m.git.Fetch(); err != nil {
		m.logf("fetch before merge: %v", err)
	}

	if err := m.git.CheckoutBranch(targetBranch); err != nil {
		return fmt.Errorf("checkout target branch %q: %w", targetBranch, err)
	}

	message := fmt.Sprintf("Merge variant %s (%s)", variantID, branch)
	switch strategy {
	case StrategyMerge:
		if err := m.git.MergeNoFFMessage(branch, message); err != nil {
			return fmt.Errorf("merge variant %s into %s: %w; resolve conflicts manually", variantID, targetBranch, err)
		}
	case StrategySquash:
		if err := m.git.MergeSquash(branch); err != nil {
			return fmt.Errorf("squash-merge variant %s into %s: %w; resolve conflicts manually", variantID, targetBranch, err)
		}
		if err := m.git.Commit(m.projectPath, message); err != nil {
			return fmt.Errorf("commit squashed variant %s: %w", variantID, err)
		}
	case StrategyFF:
		if err := m.git.MergeFFOnly(branch); err != nil {
			return fmt.Errorf("fast-forward %s to variant %s: %w; target has diverged", targetBranch, variantID, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	return m.Remove(variantID)
}
