// Package ports provides deterministic per-project port assignment with
// real bind probing and socket-held reservations.
//
// Each project is assigned a fixed-size block of ports derived from a
// stable hash of its key, so distinct projects land in non-overlapping
// ranges with high probability. Probing binds a real loopback listener;
// a reservation keeps that listener open until the dev server is ready
// to take the port, which closes the check-then-use race.
package ports

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"strconv"
)

var (
	// ErrPortOutOfRange is returned when a variant's numeric ID falls
	// outside the project's port block.
	ErrPortOutOfRange = errors.New("variant port outside project block")
	// ErrRangeExhausted is returned when no port in the project's block
	// is available.
	ErrRangeExhausted = errors.New("project port range exhausted")
)

// Allocator assigns ports from per-project blocks.
type Allocator struct {
	base      int // global base port, start of the usable range
	blockSize int // ports reserved per project
	blocks    int // number of project blocks in the usable range
}

// NewAllocator creates an Allocator. Zero or negative parameters fall
// back to the defaults (base 42000, 20 blocks of 1000 ports).
func NewAllocator(base, blockSize, blocks int) *Allocator {
	if base <= 0 {
		base = 42000
	}
	if blockSize <= 0 {
		blockSize = 1000
	}
	if blocks <= 0 {
		blocks = 20
	}
	return &Allocator{base: base, blockSize: blockSize, blocks: blocks}
}

// BlockSize returns the number of ports reserved per project.
func (a *Allocator) BlockSize() int {
	return a.blockSize
}

// ProjectBasePort returns the deterministic base port for a project key.
// The same key always maps to the same block.
func (a *Allocator) ProjectBasePort(projectKey string) int {
	h := fnv.New32a()
	h.Write([]byte(projectKey))
	block := int(h.Sum32() % uint32(a.blocks))
	return a.base + block*a.blockSize
}

// PortForVariant returns the preferred port for a variant: the project
// base plus the variant's numeric ID. The numeric ID must fall within
// [1, blockSize).
func (a *Allocator) PortForVariant(projectKey, variantID string) (int, error) {
	n, err := strconv.Atoi(variantID)
	if err != nil {
		return 0, fmt.Errorf("parse variant id %q: %w", variantID, err)
	}
	if n < 1 || n >= a.blockSize {
		return 0, fmt.Errorf("%w: variant %s maps past offset %d", ErrPortOutOfRange, variantID, a.blockSize)
	}
	return a.ProjectBasePort(projectKey) + n, nil
}

// IsAvailable reports whether a port can be bound on loopback right now.
// The probe listener is closed immediately; prefer AllocateWithReservation
// when the answer must still hold later.
func (a *Allocator) IsAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// Allocate returns an available port for the variant: the deterministic
// port if free, otherwise the first free port in the rest of the
// project's block.
func (a *Allocator) Allocate(projectKey, variantID string) (int, error) {
	preferred, err := a.PortForVariant(projectKey, variantID)
	if err != nil {
		return 0, err
	}
	if a.IsAvailable(preferred) {
		return preferred, nil
	}

	base := a.ProjectBasePort(projectKey)
	for offset := 1; offset < a.blockSize; offset++ {
		port := base + offset
		if port == preferred {
			continue
		}
		if a.IsAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: %d-%d", ErrRangeExhausted, base, base+a.blockSize-1)
}

// AllocateWithReservation allocates a port and holds the probing listener
// open as the reservation itself. The caller must Release the reservation
// just before handing the port to the real server process.
func (a *Allocator) AllocateWithReservation(projectKey, variantID string) (*Reservation, error) {
	preferred, err := a.PortForVariant(projectKey, variantID)
	if err != nil {
		return nil, err
	}
	if res, err := reserve(preferred); err == nil {
		return res, nil
	}

	base := a.ProjectBasePort(projectKey)
	for offset := 1; offset < a.blockSize; offset++ {
		port := base + offset
		if port == preferred {
			continue
		}
		if res, err := reserve(port); err == nil {
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %d-%d", ErrRangeExhausted, base, base+a.blockSize-1)
}
