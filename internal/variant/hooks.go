package variant

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

// runPostCreateHooks applies the optional convenience steps after a
// worktree is created. Both are best-effort: a failure is logged and
// never affects the variant's state.
func (m *Manager) runPostCreateHooks(wtPath string) {
	if m.cfg.Hooks.CopyEnv {
		if err := copyEnvFile(m.projectPath, wtPath); err != nil {
			m.logger.Log("copy .env into %s: %v", wtPath, err)
		}
	}
	if m.cfg.Hooks.InstallDeps {
		go m.installDeps(wtPath)
	}
}

// copyEnvFile copies the project's .env into the worktree. Untracked
// env files don't travel with the branch, so new worktrees start
// without one. Missing source is not an error.
func copyEnvFile(projectPath, wtPath string) error {
	src := filepath.Join(projectPath, ".env")
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(filepath.Join(wtPath, ".env"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// installDeps runs a background dependency install in the worktree so
// the first preview start doesn't pay the full npm install cost.
func (m *Manager) installDeps(wtPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if !m.exec.Exists(ctx, wtPath, "package.json") {
		return
	}

	m.logger.Log("installing dependencies in %s", wtPath)
	if out, err := m.exec.Run(ctx, wtPath, "npm", "install", "--no-audit", "--no-fund"); err != nil {
		m.logger.Log("npm install in %s: %v: %s", wtPath, err, truncate(string(out), 500))
		return
	}
	m.logger.Log("dependencies installed in %s", wtPath)
}

// truncate caps a string for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
