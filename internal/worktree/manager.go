// Package worktree manages the git worktrees backing variants: creation
// with rollback, patch application, merging back, and cleanup.
package worktree

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/uivar/uivar/internal/git"
	"github.com/uivar/uivar/internal/metadata"
)

// BranchPrefix is the namespace for variant branches.
const BranchPrefix = "ui-var/"

// ErrBaseRefNotFound is returned when the base ref does not resolve,
// even after fetching.
var ErrBaseRefNotFound = errors.New("base reference not found")

// Manager performs git worktree operations for one project.
type Manager struct {
	projectPath string
	git         git.Runner
	store       *metadata.Store
	logf        func(format string, args ...interface{})
}

// NewManager creates a Manager for the project at projectPath.
func NewManager(projectPath string, store *metadata.Store) *Manager {
	return &Manager{
		projectPath: projectPath,
		git:         git.NewRunner(projectPath),
		store:       store,
		logf:        func(format string, args ...interface{}) {},
	}
}

// NewManagerWithRunner creates a Manager with a custom git runner (for testing).
func NewManagerWithRunner(projectPath string, store *metadata.Store, runner git.Runner) *Manager {
	m := NewManager(projectPath, store)
	m.git = runner
	return m
}

// SetLogger sets the best-effort logger for non-fatal cleanup failures.
func (m *Manager) SetLogger(logf func(format string, args ...interface{})) {
	if logf != nil {
		m.logf = logf
	}
}

// Slugify reduces a free-text description to a branch-safe slug:
// lowercase, alphanumerics and hyphens only, at most 50 characters.
func Slugify(description string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphens
	for _, r := range strings.ToLower(description) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= 50 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

// BranchName derives the branch for a variant: ui-var/<id>[-<slug>].
func BranchName(variantID, description string) string {
	slug := Slugify(description)
	if slug == "" {
		return BranchPrefix + variantID
	}
	return BranchPrefix + variantID + "-" + slug
}

// CreateResult describes a successfully created worktree.
type CreateResult struct {
	VariantID  string
	Path       string
	Branch     string
	BaseCommit string
}

// Create makes a new variant worktree from baseRef.
//
// The flow is: verify the base ref (fetching and retrying once if it
// doesn't resolve), allocate a variant ID, create the worktree on a new
// branch (or reuse an existing branch of the same name, which supports
// retrying a failed attempt), read back HEAD, and finalize the metadata
// record. Any failure after ID allocation marks the variant failed with
// the error attached and best-effort removes the partial worktree.
func (m *Manager) Create(baseRef, description string) (result *CreateResult, err error) {
	if baseRef == "" {
		baseRef = "HEAD"
	}

	ok, verr := m.git.VerifyRef(baseRef)
	if verr != nil {
		return nil, fmt.Errorf("verify base ref %q: %w", baseRef, verr)
	}
	if !ok {
		if ferr := m.git.Fetch(); ferr != nil {
			m.logf("fetch before retrying base ref %q: %v", baseRef, ferr)
		}
		ok, verr = m.git.VerifyRef(baseRef)
		if verr != nil {
			return nil, fmt.Errorf("verify base ref %q: %w", baseRef, verr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBaseRefNotFound, baseRef)
		}
	}

	if _, err := m.store.Initialize(m.projectPath, m.git.OriginURL()); err != nil {
		return nil, fmt.Errorf("initialize project metadata: %w", err)
	}

	variantID, err := m.store.AllocateVariantID(m.projectPath)
	if err != nil {
		return nil, fmt.Errorf("allocate variant id: %w", err)
	}

	wtPath := m.store.WorktreePath(m.projectPath, variantID)
	branch := BranchName(variantID, description)

	// The reservation must never silently vanish: from here on, any
	// failure marks the variant failed before surfacing.
	defer func() {
		if err == nil {
			return
		}
		m.rollback(variantID, wtPath, err)
	}()

	branchExists, berr := m.git.BranchExists(branch)
	if berr != nil {
		return nil, fmt.Errorf("check branch %q: %w", branch, berr)
	}
	if branchExists {
		if err := m.git.WorktreeAdd(wtPath, branch); err != nil {
			return nil, fmt.Errorf("create worktree for existing branch %q: %w", branch, err)
		}
	} else {
		if err := m.git.WorktreeAddNewBranch(wtPath, branch, baseRef); err != nil {
			return nil, fmt.Errorf("create worktree on new branch %q: %w", branch, err)
		}
	}

	baseCommit, err := m.git.HeadCommit(wtPath)
	if err != nil {
		return nil, fmt.Errorf("read worktree HEAD: %w", err)
	}

	originURL := m.git.OriginURL()
	if err := m.store.UpdateVariant(m.projectPath, variantID, func(v *metadata.Variant) {
		v.Status = metadata.StatusCreated
		v.Branch = branch
		v.Description = description
		v.OriginURL = originURL
		v.Error = ""
	}); err != nil {
		return nil, fmt.Errorf("finalize variant %s: %w", variantID, err)
	}

	return &CreateResult{
		VariantID:  variantID,
		Path:       wtPath,
		Branch:     branch,
		BaseCommit: baseCommit,
	}, nil
}

// rollback records a creation failure and removes the partial worktree.
func (m *Manager) rollback(variantID, wtPath string, cause error) {
	if uerr := m.store.UpdateVariant(m.projectPath, variantID, func(v *metadata.Variant) {
		v.Status = metadata.StatusFailed
		v.Error = cause.Error()
	}); uerr != nil {
		m.logf("mark variant %s failed: %v", variantID, uerr)
	}

	if _, serr := os.Stat(wtPath); serr == nil {
		if rerr := m.git.WorktreeRemove(wtPath); rerr != nil {
			m.logf("remove partial worktree %s: %v", wtPath, rerr)
			if rerr := os.RemoveAll(wtPath); rerr != nil {
				m.logf("remove partial worktree directory %s: %v", wtPath, rerr)
			}
		}
	}
}

// Remove tears down a variant's worktree, branch, and metadata record.
// Removal is best-effort and idempotent: git errors are logged, and the
// metadata entry is always cleared.
func (m *Manager) Remove(variantID string) error {
	wtPath := m.store.WorktreePath(m.projectPath, variantID)

	if err := m.git.WorktreeRemove(wtPath); err != nil {
		// Tolerates "not a working tree" for repeat removals.
		m.logf("remove worktree %s: %v", wtPath, err)
	}

	branch := m.branchFor(variantID)
	if branch != "" {
		exists, err := m.git.BranchExists(branch)
		if err != nil {
			m.logf("check branch %s: %v", branch, err)
		} else if exists {
			if err := m.git.DeleteBranch(branch); err != nil {
				m.logf("delete branch %s: %v", branch, err)
			}
		}
	}

	if err := m.git.WorktreePrune(); err != nil {
		m.logf("prune worktrees: %v", err)
	}

	return m.store.RemoveVariant(m.projectPath, variantID)
}

// Prune drops stale worktree registrations from git's bookkeeping.
func (m *Manager) Prune() error {
	return m.git.WorktreePrune()
}

// branchFor resolves a variant's branch from the metadata record.
func (m *Manager) branchFor(variantID string) string {
	md, err := m.store.Read(m.projectPath)
	if err != nil || md == nil {
		return ""
	}
	if v := md.FindVariant(variantID); v != nil {
		return v.Branch
	}
	return ""
}
