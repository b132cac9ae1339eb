package metadata

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
)

// CanonicalProjectPath resolves a project path to its canonical absolute
// form. Symlinks are resolved best-effort; a path that cannot be resolved
// is still usable, just less stable across spellings.
func CanonicalProjectPath(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return filepath.Clean(projectPath)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// ProjectKey returns the stable identity key for a project: its canonical
// path. Both metadata placement and port allocation derive from it.
func ProjectKey(projectPath string) string {
	return CanonicalProjectPath(projectPath)
}

// ProjectDirName derives the per-project directory name from the canonical
// project path: the base name plus a short stable hash, so distinct
// projects with the same base name don't collide.
func ProjectDirName(projectPath string) string {
	canonical := CanonicalProjectPath(projectPath)
	h := fnv.New32a()
	h.Write([]byte(canonical))
	return fmt.Sprintf("%s-%08x", filepath.Base(canonical), h.Sum32())
}

// ProjectDir returns the per-project directory under the data root.
// Variant worktrees and the metadata file both live here.
func ProjectDir(dataDir, projectPath string) string {
	return filepath.Join(dataDir, "projects", ProjectDirName(projectPath))
}

// MetadataPath returns the path of the project's metadata file.
func MetadataPath(dataDir, projectPath string) string {
	return filepath.Join(ProjectDir(dataDir, projectPath), "metadata.json")
}

// WorktreePath returns the path of a variant's worktree directory.
func WorktreePath(dataDir, projectPath, variantID string) string {
	return filepath.Join(ProjectDir(dataDir, projectPath), variantID)
}
