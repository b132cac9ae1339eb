package worktree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uivar/uivar/internal/metadata"
)

const samplePatch = `--- a/src/App.jsx
+++ b/src/App.jsx
@@ -1,3 +1,3 @@
-old header
+new header
`

// createWithDir runs Create and makes the worktree directory exist on
// disk, which the fake runner does not do by itself.
func createWithDir(t *testing.T, mgr *Manager) *CreateResult {
	t.Helper()
	result, err := mgr.Create("HEAD", "patch target")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := os.MkdirAll(result.Path, 0755); err != nil {
		t.Fatalf("create worktree dir: %v", err)
	}
	return result
}

func TestApplyPatchThreeWay(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)
	result := createWithDir(t, mgr)

	if err := mgr.ApplyPatch(result.VariantID, samplePatch); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}

	if len(fake.commits) == 0 {
		t.Fatal("no commit recorded")
	}
	last := fake.commits[len(fake.commits)-1]
	if !strings.Contains(last, "3-way merge") {
		t.Errorf("commit = %q, want 3-way merge message", last)
	}
}

func TestApplyPatchFallsBackToPlain(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)
	result := createWithDir(t, mgr)
	fake.apply3WayErr = errors.New("sha1 information is lacking")

	if err := mgr.ApplyPatch(result.VariantID, samplePatch); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}

	last := fake.commits[len(fake.commits)-1]
	if strings.Contains(last, "3-way") {
		t.Errorf("commit = %q, want plain apply message", last)
	}
}

func TestApplyPatchBothModesFail(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)
	result := createWithDir(t, mgr)
	fake.apply3WayErr = errors.New("sha1 information is lacking")
	fake.applyErr = errors.New("patch does not apply")

	err := mgr.ApplyPatch(result.VariantID, samplePatch)
	if err == nil {
		t.Fatal("ApplyPatch() succeeded, want combined failure")
	}
	if !strings.Contains(err.Error(), "3-way failed") || !strings.Contains(err.Error(), "plain apply failed") {
		t.Errorf("error = %v, want both failure reasons", err)
	}
	if len(fake.commits) != 0 {
		t.Errorf("commit recorded despite apply failure")
	}
}

func TestApplyPatchNoChangesSkipsCommit(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)
	result := createWithDir(t, mgr)
	fake.hasChanges = false

	if err := mgr.ApplyPatch(result.VariantID, samplePatch); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if len(fake.commits) != 0 {
		t.Errorf("empty patch produced a commit")
	}
}

func TestApplyPatchUnknownVariant(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	err := mgr.ApplyPatch("042", samplePatch)
	if !errors.Is(err, metadata.ErrVariantNotFound) {
		t.Errorf("ApplyPatch() error = %v, want ErrVariantNotFound", err)
	}
}

func TestApplyPatchCleansUpTempFile(t *testing.T) {
	mgr, fake, _, _ := newTestManager(t)
	result := createWithDir(t, mgr)
	fake.apply3WayErr = errors.New("corrupt patch")
	fake.applyErr = errors.New("corrupt patch")

	_ = mgr.ApplyPatch(result.VariantID, samplePatch)

	entries, err := os.ReadDir(result.Path)
	if err != nil {
		t.Fatalf("read worktree dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".patch") {
			t.Errorf("temp patch file %s left behind", e.Name())
		}
	}
}

func TestListManaged(t *testing.T) {
	mgr, fake, _, project := newTestManager(t)

	result, err := mgr.Create("HEAD", "listed")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	fake.porcelain = strings.Join([]string{
		"worktree " + project,
		"HEAD abc123def456",
		"branch refs/heads/main",
		"",
		"worktree " + result.Path,
		"HEAD abc123def456",
		"branch refs/heads/" + result.Branch,
		"",
		"worktree " + filepath.Join(t.TempDir(), "unrelated"),
		"HEAD abc123def456",
		"branch refs/heads/other",
		"",
	}, "\n")

	managed, err := mgr.ListManaged()
	if err != nil {
		t.Fatalf("ListManaged() error = %v", err)
	}
	if len(managed) != 1 {
		t.Fatalf("ListManaged() = %d entries, want 1 (main and unrelated excluded)", len(managed))
	}
	if managed[0].Path != result.Path {
		t.Errorf("path = %q, want %q", managed[0].Path, result.Path)
	}
	if managed[0].Branch != result.Branch {
		t.Errorf("branch = %q, want %q", managed[0].Branch, result.Branch)
	}
	if managed[0].VariantID != result.VariantID {
		t.Errorf("variant id = %q, want %q", managed[0].VariantID, result.VariantID)
	}
}
