// Package git provides an interface for git operations.
package git

// RefOperations defines the interface for resolving and fetching refs.
type RefOperations interface {
	// RevParse resolves a ref to a full commit hash.
	RevParse(ref string) (string, error)
	// VerifyRef returns true if the ref resolves to a commit.
	VerifyRef(ref string) (bool, error)
	// Fetch fetches from the default remote. Returns nil if no remote
	// is configured.
	Fetch() error
	// HeadCommit returns the commit hash of HEAD in the given directory.
	HeadCommit(dir string) (string, error)
	// OriginURL returns the URL of the origin remote, or empty string
	// if none is configured.
	OriginURL() string
	// TopLevel returns the absolute path of the repository root.
	TopLevel() (string, error)
}

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(name string) error
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
}

// CommitOperations defines the interface for staging and committing.
type CommitOperations interface {
	// Status returns the output of git status --porcelain for a directory.
	Status(dir string) (string, error)
	// HasChanges returns true if there are uncommitted changes in dir.
	HasChanges(dir string) (bool, error)
	// AddAll stages all changes in the given directory.
	AddAll(dir string) error
	// Commit creates a new commit in dir with the given message.
	Commit(dir, message string) error
}

// MergeOperations defines the interface for git merge operations.
type MergeOperations interface {
	// MergeNoFFMessage merges a branch with --no-ff and a custom message.
	MergeNoFFMessage(branch, message string) error
	// MergeSquash squash-merges a branch into the current branch without
	// committing. A follow-up Commit is required.
	MergeSquash(branch string) error
	// MergeFFOnly merges a branch with --ff-only. Fails if the current
	// branch has diverged.
	MergeFFOnly(branch string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort() error
}

// PatchOperations defines the interface for applying patches.
type PatchOperations interface {
	// ApplyPatch3Way applies a patch file in dir using a 3-way merge.
	ApplyPatch3Way(dir, patchFile string) error
	// ApplyPatch applies a patch file in dir without 3-way fallback.
	ApplyPatch(dir, patchFile string) error
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree on a new branch starting
	// at the given ref (git worktree add -b <branch> <path> <ref>).
	WorktreeAddNewBranch(path, branch, ref string) error
	// WorktreeAdd creates a worktree for an existing branch.
	WorktreeAdd(path, branch string) error
	// WorktreeRemove force-removes the worktree at the given path.
	WorktreeRemove(path string) error
	// WorktreeListPorcelain returns the raw porcelain listing.
	WorktreeListPorcelain() (string, error)
	// WorktreePrune removes stale worktree registrations.
	WorktreePrune() error
}

// Runner defines the complete interface for git operations.
// Consumers should prefer the focused interfaces when possible.
type Runner interface {
	RefOperations
	BranchOperations
	CommitOperations
	MergeOperations
	PatchOperations
	WorktreeOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
