package worktree

import (
	"errors"
	"fmt"

	"github.com/uivar/uivar/internal/git"
)

// fakeGit is an in-memory git.Runner for exercising the manager without
// a real repository.
type fakeGit struct {
	refs     map[string]bool // resolvable refs
	branches map[string]bool
	fetched  bool

	// refsAfterFetch become resolvable once Fetch has run.
	refsAfterFetch map[string]bool

	worktrees map[string]string // path -> branch
	headHash  string
	origin    string
	porcelain string

	hasChanges   bool
	apply3WayErr error
	applyErr     error
	mergeErr     error
	checkoutErr  error

	commits     []string // "<dir>: <message>"
	checkedOut  []string
	merged      []string
	deleted     []string
	pruned      int
	removedPath []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		refs:           map[string]bool{"HEAD": true, "main": true},
		branches:       map[string]bool{"main": true},
		refsAfterFetch: map[string]bool{},
		worktrees:      map[string]string{},
		headHash:       "abc123def456",
		hasChanges:     true,
	}
}

func (f *fakeGit) RevParse(ref string) (string, error) {
	if f.refs[ref] {
		return f.headHash, nil
	}
	return "", fmt.Errorf("unknown ref %q", ref)
}

func (f *fakeGit) VerifyRef(ref string) (bool, error) {
	if f.refs[ref] {
		return true, nil
	}
	if f.fetched && f.refsAfterFetch[ref] {
		return true, nil
	}
	return false, nil
}

func (f *fakeGit) Fetch() error {
	f.fetched = true
	return nil
}

func (f *fakeGit) HeadCommit(dir string) (string, error) {
	return f.headHash, nil
}

func (f *fakeGit) OriginURL() string { return f.origin }

func (f *fakeGit) TopLevel() (string, error) { return "/repo", nil }

func (f *fakeGit) CurrentBranch() (string, error) { return "main", nil }

func (f *fakeGit) CheckoutBranch(name string) error {
	if f.checkoutErr != nil {
		return f.checkoutErr
	}
	f.checkedOut = append(f.checkedOut, name)
	return nil
}

func (f *fakeGit) BranchExists(name string) (bool, error) {
	return f.branches[name], nil
}

func (f *fakeGit) DeleteBranch(name string) error {
	if !f.branches[name] {
		return errors.New("branch not found")
	}
	delete(f.branches, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeGit) Status(dir string) (string, error) {
	if f.hasChanges {
		return " M file.txt", nil
	}
	return "", nil
}

func (f *fakeGit) HasChanges(dir string) (bool, error) { return f.hasChanges, nil }

func (f *fakeGit) AddAll(dir string) error { return nil }

func (f *fakeGit) Commit(dir, message string) error {
	f.commits = append(f.commits, dir+": "+message)
	return nil
}

func (f *fakeGit) MergeNoFFMessage(branch, message string) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, "no-ff "+branch)
	return nil
}

func (f *fakeGit) MergeSquash(branch string) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, "squash "+branch)
	return nil
}

func (f *fakeGit) MergeFFOnly(branch string) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, "ff "+branch)
	return nil
}

func (f *fakeGit) MergeAbort() error { return nil }

func (f *fakeGit) ApplyPatch3Way(dir, patchFile string) error { return f.apply3WayErr }

func (f *fakeGit) ApplyPatch(dir, patchFile string) error { return f.applyErr }

func (f *fakeGit) WorktreeAddNewBranch(path, branch, ref string) error {
	f.branches[branch] = true
	f.worktrees[path] = branch
	return nil
}

func (f *fakeGit) WorktreeAdd(path, branch string) error {
	f.worktrees[path] = branch
	return nil
}

func (f *fakeGit) WorktreeRemove(path string) error {
	if _, ok := f.worktrees[path]; !ok {
		return errors.New("not a working tree")
	}
	delete(f.worktrees, path)
	f.removedPath = append(f.removedPath, path)
	return nil
}

func (f *fakeGit) WorktreeListPorcelain() (string, error) { return f.porcelain, nil }

func (f *fakeGit) WorktreePrune() error {
	f.pruned++
	return nil
}

func (f *fakeGit) Run(args ...string) (string, error) { return "", nil }

// failingWorktreeGit wraps fakeGit to fail worktree creation.
type failingWorktreeGit struct {
	*fakeGit
}

func (f *failingWorktreeGit) WorktreeAddNewBranch(path, branch, ref string) error {
	return errors.New("disk full")
}

var (
	_ git.Runner = (*fakeGit)(nil)
	_ git.Runner = (*failingWorktreeGit)(nil)
)
