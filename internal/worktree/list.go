package worktree

import (
	"bufio"
	"fmt"
	"strings"
)

// Managed describes a worktree under this tool's managed root,
// cross-referenced against the metadata record.
type Managed struct {
	Path      string
	Branch    string
	VariantID string
}

// ListManaged parses the porcelain worktree listing, keeps paths under
// the project's managed root (excluding the main worktree), and attaches
// variant IDs by matching branches against the metadata record.
func (m *Manager) ListManaged() ([]Managed, error) {
	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	branchToVariant := make(map[string]string)
	if md, err := m.store.Read(m.projectPath); err == nil && md != nil {
		for _, v := range md.Variants {
			if v.Branch != "" {
				branchToVariant[v.Branch] = v.ID
			}
		}
	}

	managedRoot := m.store.ProjectDir(m.projectPath)

	var result []Managed
	var current *Managed

	flush := func() {
		if current == nil {
			return
		}
		if current.Path != m.projectPath && strings.HasPrefix(current.Path, managedRoot+"/") {
			current.VariantID = branchToVariant[current.Branch]
			result = append(result, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			flush()
			continue
		}

		if strings.HasPrefix(line, "worktree ") {
			current = &Managed{Path: strings.TrimPrefix(line, "worktree ")}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}
	return result, nil
}
