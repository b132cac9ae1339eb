package worktree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/uivar/uivar/internal/metadata"
)

// ApplyPatch applies unified-diff text to a variant's worktree and
// commits the result.
//
// A 3-way merge apply is attempted first, since it resolves context
// drift when the variant has diverged; a plain apply is the fallback.
// If both fail the combined error shows both reasons. The temp patch
// file is always removed, even on failure.
func (m *Manager) ApplyPatch(variantID, patchText string) error {
	md, err := m.store.Read(m.projectPath)
	if err != nil {
		return err
	}
	if md == nil || md.FindVariant(variantID) == nil {
		return fmt.Errorf("%w: %s", metadata.ErrVariantNotFound, variantID)
	}

	wtPath := m.store.WorktreePath(m.projectPath, variantID)
	if _, err := os.Stat(wtPath); err != nil {
		return fmt.Errorf("variant %s worktree missing at %s: %w", variantID, wtPath, err)
	}

	patchFile := filepath.Join(wtPath, fmt.Sprintf(".uivar-%s.patch", uuid.New().String()))
	if err := os.WriteFile(patchFile, []byte(patchText), 0644); err != nil {
		return fmt.Errorf("write patch file: %w", err)
	}
	defer func() {
		if err := os.Remove(patchFile); err != nil && !os.IsNotExist(err) {
			m.logf("remove patch file %s: %v", patchFile, err)
		}
	}()

	threeWay := true
	err3 := m.git.ApplyPatch3Way(wtPath, patchFile)
	if err3 != nil {
		threeWay = false
		if errPlain := m.git.ApplyPatch(wtPath, patchFile); errPlain != nil {
			return fmt.Errorf("apply patch to variant %s: 3-way failed: %v; plain apply failed: %w",
				variantID, err3, errPlain)
		}
	}

	hasChanges, err := m.git.HasChanges(wtPath)
	if err != nil {
		return fmt.Errorf("check worktree status: %w", err)
	}
	if !hasChanges {
		return nil
	}

	if err := m.git.AddAll(wtPath); err != nil {
		return fmt.Errorf("stage patch changes: %w", err)
	}
	message := "Apply patch"
	if threeWay {
		message = "Apply patch (3-way merge)"
	}
	if err := m.git.Commit(wtPath, message); err != nil {
		return fmt.Errorf("commit patch changes: %w", err)
	}
	return nil
}
