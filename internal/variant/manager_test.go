package variant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uivar/uivar/internal/config"
	"github.com/uivar/uivar/internal/git"
	"github.com/uivar/uivar/internal/metadata"
	"github.com/uivar/uivar/internal/worktree"
)

// stubGit is a minimal in-memory git.Runner: every operation succeeds.
type stubGit struct{}

func (stubGit) RevParse(ref string) (string, error) { return "abc123", nil }
func (stubGit) VerifyRef(ref string) (bool, error)  { return true, nil }
func (stubGit) Fetch() error                        { return nil }
func (stubGit) HeadCommit(dir string) (string, error) {
	return "abc123", nil
}
func (stubGit) OriginURL() string                            { return "git@example.com:demo/webapp.git" }
func (stubGit) TopLevel() (string, error)                    { return "/repo", nil }
func (stubGit) CurrentBranch() (string, error)               { return "main", nil }
func (stubGit) CheckoutBranch(name string) error             { return nil }
func (stubGit) BranchExists(name string) (bool, error)       { return false, nil }
func (stubGit) DeleteBranch(name string) error               { return nil }
func (stubGit) Status(dir string) (string, error)            { return "", nil }
func (stubGit) HasChanges(dir string) (bool, error)          { return true, nil }
func (stubGit) AddAll(dir string) error                      { return nil }
func (stubGit) Commit(dir, message string) error             { return nil }
func (stubGit) MergeNoFFMessage(branch, msg string) error    { return nil }
func (stubGit) MergeSquash(branch string) error              { return nil }
func (stubGit) MergeFFOnly(branch string) error              { return nil }
func (stubGit) MergeAbort() error                            { return nil }
func (stubGit) ApplyPatch3Way(dir, patchFile string) error   { return nil }
func (stubGit) ApplyPatch(dir, patchFile string) error       { return nil }
func (stubGit) WorktreeAddNewBranch(p, b, r string) error    { return os.MkdirAll(p, 0755) }
func (stubGit) WorktreeAdd(path, branch string) error        { return os.MkdirAll(path, 0755) }
func (stubGit) WorktreeRemove(path string) error             { return os.RemoveAll(path) }
func (stubGit) WorktreeListPorcelain() (string, error)       { return "", nil }
func (stubGit) WorktreePrune() error                         { return nil }
func (stubGit) Run(args ...string) (string, error)           { return "", nil }

var _ git.Runner = stubGit{}

// recordingExec captures hook commands instead of running them.
type recordingExec struct {
	mu    sync.Mutex
	runs  [][]string
	files map[string]bool // paths reported as existing
}

func (r *recordingExec) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, append([]string{name}, args...))
	return nil, nil
}

func (r *recordingExec) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

func (r *recordingExec) Exists(ctx context.Context, workDir, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[path]
}

func (r *recordingExec) ranNpmInstall() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if len(run) >= 2 && run[0] == "npm" && run[1] == "install" {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Dir = t.TempDir()
	cfg.Hooks.CopyEnv = false
	cfg.Hooks.InstallDeps = false

	projectPath := filepath.Join(t.TempDir(), "webapp")
	if err := os.MkdirAll(projectPath, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := New(projectPath, cfg, WithGitRunner(stubGit{}), WithLogger(NopLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, projectPath
}

// nextEvent receives one event or fails the test.
func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case e := <-m.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestCreateEmitsEventAndJournals(t *testing.T) {
	m, _ := newTestManager(t)

	result, err := m.Create("HEAD", "New Header")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	e := nextEvent(t, m)
	if e.Type != EventVariantCreated {
		t.Errorf("event = %q, want variant:created", e.Type)
	}
	if e.VariantID != result.VariantID {
		t.Errorf("event variant = %q, want %q", e.VariantID, result.VariantID)
	}

	if m.Journal() == nil {
		t.Fatal("journal not opened")
	}
	entries, err := m.Journal().ListForVariant(result.VariantID)
	if err != nil {
		t.Fatalf("ListForVariant() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Event != string(EventVariantCreated) {
		t.Errorf("journal entries = %+v", entries)
	}
}

func TestRemoveEmitsEvent(t *testing.T) {
	m, _ := newTestManager(t)

	result, err := m.Create("HEAD", "doomed")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	<-m.Events()

	if err := m.Remove(result.VariantID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	e := nextEvent(t, m)
	if e.Type != EventVariantRemoved || e.VariantID != result.VariantID {
		t.Errorf("event = %+v", e)
	}

	status, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if status.Project.FindVariant(result.VariantID) != nil {
		t.Error("variant still in metadata after Remove")
	}
}

func TestStartPreviewMissingWorktree(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.StartPreview(context.Background(), "042")
	if err == nil {
		t.Fatal("StartPreview() succeeded for missing worktree")
	}
	if !strings.Contains(err.Error(), "worktree missing") {
		t.Errorf("error = %v", err)
	}
}

func TestStopPreviewMarksStopped(t *testing.T) {
	m, _ := newTestManager(t)

	result, err := m.Create("HEAD", "preview")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	<-m.Events()

	if err := m.StopPreview(result.VariantID); err != nil {
		t.Fatalf("StopPreview() error = %v", err)
	}

	e := nextEvent(t, m)
	if e.Type != EventPreviewStopped {
		t.Errorf("event = %q, want preview:stopped", e.Type)
	}

	status, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	v := status.Project.FindVariant(result.VariantID)
	if v == nil || v.Status != metadata.StatusStopped {
		t.Errorf("variant = %+v, want status stopped", v)
	}
}

func TestMergeEmitsRemoval(t *testing.T) {
	m, _ := newTestManager(t)

	result, err := m.Create("HEAD", "mergeme")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	<-m.Events()

	if err := m.Merge(result.VariantID, "main", worktree.StrategySquash); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	e := nextEvent(t, m)
	if e.Type != EventVariantRemoved {
		t.Errorf("event = %q, want variant:removed", e.Type)
	}
	if !strings.Contains(e.Message, "main") {
		t.Errorf("message = %q, want target branch named", e.Message)
	}
}

func TestMergeUnknownVariant(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Merge("042", "main", worktree.StrategyMerge)
	if !errors.Is(err, metadata.ErrVariantNotFound) {
		t.Errorf("Merge() error = %v, want ErrVariantNotFound", err)
	}
}

func TestStatusEmptyProject(t *testing.T) {
	m, _ := newTestManager(t)

	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status == nil || status.Project == nil {
		t.Fatal("Status() returned nil for untracked project")
	}
	if len(status.Project.Variants) != 0 {
		t.Errorf("variants = %d, want 0", len(status.Project.Variants))
	}
}

func TestCopyEnvFile(t *testing.T) {
	projectPath := t.TempDir()
	wtPath := t.TempDir()

	if err := copyEnvFile(projectPath, wtPath); err != nil {
		t.Errorf("copyEnvFile() without source error = %v, want nil", err)
	}

	if err := os.WriteFile(filepath.Join(projectPath, ".env"), []byte("API_KEY=secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := copyEnvFile(projectPath, wtPath); err != nil {
		t.Fatalf("copyEnvFile() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(wtPath, ".env"))
	if err != nil {
		t.Fatalf("read copied .env: %v", err)
	}
	if string(data) != "API_KEY=secret\n" {
		t.Errorf("copied content = %q", data)
	}
}

func TestInstallDepsSkipsWithoutPackageJSON(t *testing.T) {
	m, _ := newTestManager(t)
	rec := &recordingExec{files: map[string]bool{}}
	m.exec = rec

	m.installDeps(t.TempDir())
	if rec.ranNpmInstall() {
		t.Error("npm install ran without a package.json")
	}
}

func TestInstallDepsRunsNpmInstall(t *testing.T) {
	m, _ := newTestManager(t)
	rec := &recordingExec{files: map[string]bool{"package.json": true}}
	m.exec = rec

	m.installDeps(t.TempDir())
	if !rec.ranNpmInstall() {
		t.Error("npm install did not run")
	}
}
