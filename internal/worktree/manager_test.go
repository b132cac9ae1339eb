package worktree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uivar/uivar/internal/metadata"
)

func newTestManager(t *testing.T) (*Manager, *fakeGit, *metadata.Store, string) {
	t.Helper()
	dataDir := t.TempDir()
	projectPath := filepath.Join(t.TempDir(), "webapp")
	if err := os.MkdirAll(projectPath, 0755); err != nil {
		t.Fatalf("create project dir: %v", err)
	}

	store := metadata.NewStore(dataDir)
	fake := newFakeGit()
	return NewManagerWithRunner(projectPath, store, fake), fake, store, projectPath
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"New Header", "new-header"},
		{"  spaces  everywhere  ", "spaces-everywhere"},
		{"UPPER case!", "upper-case"},
		{"dots.and/slashes", "dots-and-slashes"},
		{"", ""},
		{"---", ""},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBranchName(t *testing.T) {
	if got := BranchName("001", "New Header"); got != "ui-var/001-new-header" {
		t.Errorf("BranchName() = %q, want ui-var/001-new-header", got)
	}
	if got := BranchName("002", ""); got != "ui-var/002" {
		t.Errorf("BranchName() without description = %q, want ui-var/002", got)
	}
}

func TestCreateSuccess(t *testing.T) {
	mgr, fake, store, project := newTestManager(t)

	result, err := mgr.Create("HEAD", "New Header")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if result.VariantID != "001" {
		t.Errorf("VariantID = %q, want 001", result.VariantID)
	}
	if result.Branch != "ui-var/001-new-header" {
		t.Errorf("Branch = %q, want ui-var/001-new-header", result.Branch)
	}
	if result.BaseCommit != fake.headHash {
		t.Errorf("BaseCommit = %q, want %q", result.BaseCommit, fake.headHash)
	}
	if result.Path != store.WorktreePath(project, "001") {
		t.Errorf("Path = %q, want %q", result.Path, store.WorktreePath(project, "001"))
	}
	if fake.worktrees[result.Path] != result.Branch {
		t.Errorf("worktree not created for branch %q", result.Branch)
	}

	md, err := store.Read(project)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	v := md.FindVariant("001")
	if v == nil {
		t.Fatal("variant 001 missing")
	}
	if v.Status != metadata.StatusCreated {
		t.Errorf("status = %q, want created", v.Status)
	}
	if v.Description != "New Header" {
		t.Errorf("description = %q", v.Description)
	}
}

func TestCreateDefaultsToHead(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	if _, err := mgr.Create("", ""); err != nil {
		t.Fatalf("Create(\"\") error = %v, want HEAD default", err)
	}
}

func TestCreateUnknownBaseRef(t *testing.T) {
	mgr, fake, store, project := newTestManager(t)

	_, err := mgr.Create("does-not-exist", "")
	if !errors.Is(err, ErrBaseRefNotFound) {
		t.Fatalf("Create() error = %v, want ErrBaseRefNotFound", err)
	}
	if !fake.fetched {
		t.Error("Create() did not fetch before giving up on the base ref")
	}

	// Failure before allocation leaves no variant record behind.
	md, err := store.Read(project)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if md != nil && len(md.Variants) != 0 {
		t.Errorf("unresolved base ref left %d variant records", len(md.Variants))
	}
}

func TestCreateRefResolvesAfterFetch(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)
	fake.refsAfterFetch["origin/feature"] = true

	result, err := mgr.Create("origin/feature", "retry")
	if err != nil {
		t.Fatalf("Create() error = %v, want success after fetch", err)
	}
	if !fake.fetched {
		t.Error("Create() resolved a remote ref without fetching")
	}
	if result.VariantID != "001" {
		t.Errorf("VariantID = %q", result.VariantID)
	}
}

func TestCreateRollbackMarksFailed(t *testing.T) {
	mgr, fake, store, project := newTestManager(t)
	mgr.git = &failingWorktreeGit{fake}

	_, err := mgr.Create("HEAD", "broken")
	if err == nil {
		t.Fatal("Create() succeeded, want worktree failure")
	}

	// The reservation must not vanish: it is marked failed with the cause.
	md, rerr := store.Read(project)
	if rerr != nil {
		t.Fatalf("Read() error = %v", rerr)
	}
	v := md.FindVariant("001")
	if v == nil {
		t.Fatal("variant 001 dropped instead of marked failed")
	}
	if v.Status != metadata.StatusFailed {
		t.Errorf("status = %q, want failed", v.Status)
	}
	if !strings.Contains(v.Error, "disk full") {
		t.Errorf("error = %q, want creation cause attached", v.Error)
	}
}

func TestCreateReusesExistingBranch(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)

	// A previous failed attempt left the branch behind.
	fake.branches["ui-var/001-retry"] = true

	result, err := mgr.Create("HEAD", "Retry")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if fake.worktrees[result.Path] != "ui-var/001-retry" {
		t.Errorf("worktree branch = %q, want existing branch reused", fake.worktrees[result.Path])
	}
}

func TestRemoveNonExistentIsNoop(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	if err := mgr.Remove("042"); err != nil {
		t.Errorf("Remove() of unknown variant error = %v, want nil", err)
	}
}

func TestRemoveDeletesBranchAndRecord(t *testing.T) {
	mgr, fake, store, project := newTestManager(t)

	result, err := mgr.Create("HEAD", "to remove")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := mgr.Remove(result.VariantID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if fake.branches[result.Branch] {
		t.Errorf("branch %q still exists after removal", result.Branch)
	}
	if _, ok := fake.worktrees[result.Path]; ok {
		t.Errorf("worktree %q still registered after removal", result.Path)
	}
	if fake.pruned == 0 {
		t.Error("Remove() did not prune stale worktree registrations")
	}

	md, err := store.Read(project)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if md.FindVariant(result.VariantID) != nil {
		t.Errorf("variant record survived removal")
	}
}

func TestMergeUnknownVariant(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	err := mgr.Merge("042", "main", StrategyMerge)
	if !errors.Is(err, metadata.ErrVariantNotFound) {
		t.Errorf("Merge() error = %v, want ErrVariantNotFound", err)
	}
}

func TestMergeInvalidStrategy(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	result, err := mgr.Create("HEAD", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = mgr.Merge(result.VariantID, "main", Strategy("rebase"))
	if !errors.Is(err, ErrInvalidStrategy) {
		t.Errorf("Merge() error = %v, want ErrInvalidStrategy", err)
	}
}

func TestMergeSuccessRemovesWorktree(t *testing.T) {
	mgr, fake, store, project := newTestManager(t)

	result, err := mgr.Create("HEAD", "feature")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := mgr.Merge(result.VariantID, "main", StrategyMerge); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if len(fake.merged) != 1 || fake.merged[0] != "no-ff "+result.Branch {
		t.Errorf("merged = %v, want no-ff merge of %q", fake.merged, result.Branch)
	}
	if fake.checkedOut[len(fake.checkedOut)-1] != "main" {
		t.Errorf("target branch not checked out before merge")
	}

	md, _ := store.Read(project)
	if md.FindVariant(result.VariantID) != nil {
		t.Error("variant record survived successful merge")
	}
}

func TestMergeSquashCommits(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)

	result, err := mgr.Create("HEAD", "squashme")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := mgr.Merge(result.VariantID, "main", StrategySquash); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(fake.commits) == 0 {
		t.Fatal("squash merge produced no explicit commit")
	}
	last := fake.commits[len(fake.commits)-1]
	if !strings.Contains(last, "Merge variant "+result.VariantID) {
		t.Errorf("squash commit = %q", last)
	}
}

func TestMergeFFDivergedLeavesVariantUntouched(t *testing.T) {
	mgr, fake, store, project := newTestManager(t)

	result, err := mgr.Create("HEAD", "diverged")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	fake.mergeErr = errors.New("fatal: not possible to fast-forward")

	err = mgr.Merge(result.VariantID, "main", StrategyFF)
	if err == nil {
		t.Fatal("Merge() succeeded, want fast-forward failure")
	}

	// The variant record and its worktree survive a failed merge.
	md, _ := store.Read(project)
	if md.FindVariant(result.VariantID) == nil {
		t.Error("variant record removed after failed merge")
	}
	if _, ok := fake.worktrees[result.Path]; !ok {
		t.Error("worktree removed after failed merge")
	}
}
