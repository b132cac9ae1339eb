// Package git provides an interface for git operations.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner implements Runner using exec.Command.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// run executes a git command in the repository and returns its output.
func (r *ExecRunner) run(args ...string) (string, error) {
	return r.runIn(r.repoPath, args...)
}

// runIn executes a git command in the given directory and returns its output.
func (r *ExecRunner) runIn(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// runSilent executes a git command and ignores output.
func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.run(args...)
	return err
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(args ...string) (string, error) {
	return r.run(args...)
}

// RevParse resolves a ref to a full commit hash.
func (r *ExecRunner) RevParse(ref string) (string, error) {
	return r.run("rev-parse", "--verify", ref+"^{commit}")
}

// VerifyRef returns true if the ref resolves to a commit.
func (r *ExecRunner) VerifyRef(ref string) (bool, error) {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means the ref doesn't resolve (not an error)
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("verify ref %q: %w", ref, err)
	}
	return true, nil
}

// Fetch fetches from the default remote.
// Returns nil if no remote is configured.
func (r *ExecRunner) Fetch() error {
	remotes, err := r.run("remote")
	if err != nil || remotes == "" {
		return nil
	}
	return r.runSilent("fetch", "--all", "--prune")
}

// HeadCommit returns the commit hash of HEAD in the given directory.
func (r *ExecRunner) HeadCommit(dir string) (string, error) {
	return r.runIn(dir, "rev-parse", "HEAD")
}

// OriginURL returns the URL of the origin remote, or empty string if none.
func (r *ExecRunner) OriginURL() string {
	out, err := r.run("remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return out
}

// TopLevel returns the absolute path of the repository root.
func (r *ExecRunner) TopLevel() (string, error) {
	return r.run("rev-parse", "--show-toplevel")
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// CheckoutBranch switches to the specified branch.
func (r *ExecRunner) CheckoutBranch(name string) error {
	return r.runSilent("checkout", name)
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means branch doesn't exist (not an error)
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-D", name)
}

// Status returns the output of git status --porcelain for a directory.
func (r *ExecRunner) Status(dir string) (string, error) {
	return r.runIn(dir, "status", "--porcelain")
}

// HasChanges returns true if there are uncommitted changes in dir.
func (r *ExecRunner) HasChanges(dir string) (bool, error) {
	status, err := r.Status(dir)
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// AddAll stages all changes in the given directory.
func (r *ExecRunner) AddAll(dir string) error {
	_, err := r.runIn(dir, "add", "-A")
	return err
}

// Commit creates a new commit in dir with the given message.
func (r *ExecRunner) Commit(dir, message string) error {
	_, err := r.runIn(dir, "commit", "-m", message)
	return err
}

// MergeNoFFMessage merges a branch with --no-ff and a custom message.
func (r *ExecRunner) MergeNoFFMessage(branch, message string) error {
	return r.runSilent("merge", "--no-ff", "-m", message, branch)
}

// MergeSquash squash-merges a branch without committing.
func (r *ExecRunner) MergeSquash(branch string) error {
	return r.runSilent("merge", "--squash", branch)
}

// MergeFFOnly merges a branch with --ff-only.
func (r *ExecRunner) MergeFFOnly(branch string) error {
	return r.runSilent("merge", "--ff-only", branch)
}

// MergeAbort aborts an in-progress merge.
func (r *ExecRunner) MergeAbort() error {
	return r.runSilent("merge", "--abort")
}

// ApplyPatch3Way applies a patch file in dir using a 3-way merge.
func (r *ExecRunner) ApplyPatch3Way(dir, patchFile string) error {
	_, err := r.runIn(dir, "apply", "--3way", patchFile)
	return err
}

// ApplyPatch applies a patch file in dir without 3-way fallback.
func (r *ExecRunner) ApplyPatch(dir, patchFile string) error {
	_, err := r.runIn(dir, "apply", patchFile)
	return err
}

// WorktreeAddNewBranch creates a worktree on a new branch starting at ref.
func (r *ExecRunner) WorktreeAddNewBranch(path, branch, ref string) error {
	return r.runSilent("worktree", "add", "-b", branch, path, ref)
}

// WorktreeAdd creates a worktree for an existing branch.
func (r *ExecRunner) WorktreeAdd(path, branch string) error {
	return r.runSilent("worktree", "add", path, branch)
}

// WorktreeRemove force-removes the worktree at the given path.
func (r *ExecRunner) WorktreeRemove(path string) error {
	return r.runSilent("worktree", "remove", "--force", path)
}

// WorktreeListPorcelain returns the raw porcelain listing.
func (r *ExecRunner) WorktreeListPorcelain() (string, error) {
	return r.run("worktree", "list", "--porcelain")
}

// WorktreePrune removes stale worktree registrations.
func (r *ExecRunner) WorktreePrune() error {
	return r.runSilent("worktree", "prune", "--expire", "now")
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
