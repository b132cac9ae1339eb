package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Store persists one metadata record per project under the data directory.
// All mutations run as read-modify-write under a per-path two-layer lock
// and land on disk via an atomic temp-file rename.
type Store struct {
	dataDir string
	locker  *pathLocker
	logf    func(format string, args ...interface{})
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLockTimeouts overrides the lock acquisition timeout and staleness
// threshold.
func WithLockTimeouts(timeout, staleAfter time.Duration) StoreOption {
	return func(s *Store) {
		s.locker = newPathLocker(timeout, staleAfter)
	}
}

// WithLogger sets the best-effort logger used for non-fatal cleanup
// failures.
func WithLogger(logf func(format string, args ...interface{})) StoreOption {
	return func(s *Store) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// NewStore creates a metadata store rooted at dataDir.
func NewStore(dataDir string, opts ...StoreOption) *Store {
	s := &Store{
		dataDir: dataDir,
		locker:  newPathLocker(10*time.Second, 30*time.Second),
		logf:    func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataDir returns the store's data root.
func (s *Store) DataDir() string {
	return s.dataDir
}

// ProjectDir returns the per-project directory for the given project.
func (s *Store) ProjectDir(projectPath string) string {
	return ProjectDir(s.dataDir, projectPath)
}

// WorktreePath returns a variant's worktree directory for the given project.
func (s *Store) WorktreePath(projectPath, variantID string) string {
	return WorktreePath(s.dataDir, projectPath, variantID)
}

// Read loads the project's metadata record.
// Returns (nil, nil) if no record exists yet; any other I/O error is
// propagated.
func (s *Store) Read(projectPath string) (*ProjectMetadata, error) {
	data, err := os.ReadFile(MetadataPath(s.dataDir, projectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var md ProjectMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &md, nil
}

// Initialize returns the project's metadata record, creating and
// persisting a new empty one if none exists. Idempotent.
func (s *Store) Initialize(projectPath, originURL string) (*ProjectMetadata, error) {
	var result *ProjectMetadata

	err := s.locker.withLock(MetadataPath(s.dataDir, projectPath), func() error {
		md, err := s.Read(projectPath)
		if err != nil {
			return err
		}
		if md != nil {
			result = md
			return nil
		}

		canonical := CanonicalProjectPath(projectPath)
		now := time.Now()
		md = &ProjectMetadata{
			ProjectPath:    canonical,
			ProjectName:    filepath.Base(canonical),
			OriginURL:      originURL,
			CreatedAt:      now,
			LastAccessedAt: now,
			Variants:       []Variant{},
		}
		if err := s.write(projectPath, md); err != nil {
			return err
		}
		result = md
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Write durably replaces the project's metadata record under the lock.
func (s *Store) Write(projectPath string, md *ProjectMetadata) error {
	return s.locker.withLock(MetadataPath(s.dataDir, projectPath), func() error {
		return s.write(projectPath, md)
	})
}

// write persists the record without taking the lock. The record is
// written to a uniquely named temp file in the same directory and renamed
// over the target, so readers observe either the old or the new content,
// never a partial file.
func (s *Store) write(projectPath string, md *ProjectMetadata) error {
	target := MetadataPath(s.dataDir, projectPath)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	md.LastAccessedAt = time.Now()

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".metadata-%s.tmp", uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp metadata: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

// mutate runs a read-modify-write cycle on the project's record under the
// lock. The record passed to fn is created lazily if absent.
func (s *Store) mutate(projectPath string, fn func(md *ProjectMetadata) error) error {
	return s.locker.withLock(MetadataPath(s.dataDir, projectPath), func() error {
		md, err := s.Read(projectPath)
		if err != nil {
			return err
		}
		if md == nil {
			canonical := CanonicalProjectPath(projectPath)
			now := time.Now()
			md = &ProjectMetadata{
				ProjectPath:    canonical,
				ProjectName:    filepath.Base(canonical),
				CreatedAt:      now,
				LastAccessedAt: now,
				Variants:       []Variant{},
			}
		}
		if err := fn(md); err != nil {
			return err
		}
		return s.write(projectPath, md)
	})
}

// AllocateVariantID reserves the next variant ID for the project.
// The ID is one greater than the largest assigned so far (IDs are never
// reused), zero-padded to 3 digits. A placeholder variant with status
// "allocating" is appended under the same lock, so the reservation exists
// before the caller does any slow work.
func (s *Store) AllocateVariantID(projectPath string) (string, error) {
	var id string

	err := s.mutate(projectPath, func(md *ProjectMetadata) error {
		max := 0
		for _, v := range md.Variants {
			var n int
			if _, err := fmt.Sscanf(v.ID, "%d", &n); err == nil && n > max {
				max = n
			}
		}
		id = fmt.Sprintf("%03d", max+1)

		now := time.Now()
		md.Variants = append(md.Variants, Variant{
			ID:            id,
			Status:        StatusAllocating,
			CreatedAt:     now,
			LastUpdatedAt: now,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AddVariant appends a variant to the project's record.
func (s *Store) AddVariant(projectPath string, v Variant) error {
	return s.mutate(projectPath, func(md *ProjectMetadata) error {
		md.Variants = append(md.Variants, v)
		return nil
	})
}

// UpdateVariant applies updater to the variant with the given ID.
// Returns ErrVariantNotFound if the ID is absent.
func (s *Store) UpdateVariant(projectPath, id string, updater func(v *Variant)) error {
	return s.mutate(projectPath, func(md *ProjectMetadata) error {
		v := md.FindVariant(id)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrVariantNotFound, id)
		}
		updater(v)
		v.LastUpdatedAt = time.Now()
		return nil
	})
}

// RemoveVariant deletes the variant's record and, best-effort, its
// worktree directory on disk. A missing metadata file is a no-op.
func (s *Store) RemoveVariant(projectPath, id string) error {
	metaPath := MetadataPath(s.dataDir, projectPath)
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return nil
	}

	err := s.mutate(projectPath, func(md *ProjectMetadata) error {
		kept := md.Variants[:0]
		for _, v := range md.Variants {
			if v.ID != id {
				kept = append(kept, v)
			}
		}
		md.Variants = kept
		return nil
	})
	if err != nil {
		return err
	}

	// Deleting the directory is best-effort; a failure here must not
	// mask the successful metadata removal.
	wtPath := WorktreePath(s.dataDir, projectPath, id)
	if _, statErr := os.Stat(wtPath); statErr == nil {
		if rmErr := os.RemoveAll(wtPath); rmErr != nil {
			s.logf("remove worktree directory %s: %v", wtPath, rmErr)
		}
	}
	return nil
}
