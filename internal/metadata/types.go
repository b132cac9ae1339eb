// Package metadata provides durable per-project variant records.
// Each project has a single JSON metadata file mutated via
// read-modify-write under a two-layer lock, and replaced atomically.
package metadata

import (
	"errors"
	"regexp"
	"time"
)

// VariantStatus represents the lifecycle status of a variant.
type VariantStatus string

const (
	// StatusAllocating is a reservation placeholder that exists only
	// between ID allocation and worktree creation completing.
	StatusAllocating VariantStatus = "allocating"
	// StatusCreated indicates the variant's worktree exists and is idle.
	StatusCreated VariantStatus = "created"
	// StatusFailed indicates variant creation or its dev server failed.
	StatusFailed VariantStatus = "failed"
	// StatusStopped indicates the variant's dev server was stopped.
	StatusStopped VariantStatus = "stopped"
	// StatusRunning indicates the variant's dev server is running.
	StatusRunning VariantStatus = "running"
)

// variantIDPattern matches valid variant IDs: zero-padded 3-digit decimals.
var variantIDPattern = regexp.MustCompile(`^\d{3}$`)

// ValidVariantID returns true if id is a zero-padded 3-digit decimal.
func ValidVariantID(id string) bool {
	return variantIDPattern.MatchString(id)
}

// ErrVariantNotFound is returned when a variant ID is absent from the
// project's metadata record.
var ErrVariantNotFound = errors.New("variant not found")

// Variant is one isolated, branch-backed working copy of a project.
type Variant struct {
	ID            string        `json:"id"`
	Branch        string        `json:"branch,omitempty"`
	Status        VariantStatus `json:"status"`
	Port          int           `json:"port,omitempty"`
	Description   string        `json:"description,omitempty"`
	Error         string        `json:"error,omitempty"`
	OriginURL     string        `json:"originUrl,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastUpdatedAt time.Time     `json:"lastUpdatedAt"`
}

// ProjectMetadata is the durable record for one source project.
type ProjectMetadata struct {
	ProjectPath    string    `json:"projectPath"`
	ProjectName    string    `json:"projectName"`
	OriginURL      string    `json:"originUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	Variants       []Variant `json:"variants"`
}

// FindVariant returns a pointer to the variant with the given ID, or nil.
func (m *ProjectMetadata) FindVariant(id string) *Variant {
	for i := range m.Variants {
		if m.Variants[i].ID == id {
			return &m.Variants[i]
		}
	}
	return nil
}
