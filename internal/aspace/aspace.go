// Package aspace implements address-space projection (§4.3): installing and
// removing Table entries at a byte address, plus a TLB-shootdown-style
// broadcast coordinator for invalidating cached translations across cores.
//
// arcanum runs entirely in Go user space, so there is no hardware page
// table to program — Project/Unproject operate purely on the Table, and
// Shootdown's "cores" are goroutines with their own pending-invalidation
// flag, mirroring the fire/wait protocol a real MMU-backed kernel would use
// to keep per-core translation caches coherent.
package aspace

import (
	"fmt"

	"github.com/arcanum-run/arcanum/internal/value"
)

// Space projects a Table as an address space: Project installs mappings,
// Unproject removes them, both validated against the Table's own span and
// alignment invariants (§4.2, §4.3).
type Space struct {
	root *value.Table
}

// New wraps root as a projected address space.
func New(root *value.Table) *Space {
	return &Space{root: root}
}

// Root returns the space's current backing Table. Project may replace the
// root (growing it), so callers must use the returned Space, not a
// previously captured *value.Table.
func (s *Space) Root() *value.Table { return s.root }

// Project installs entry at addr, growing the address space if addr falls
// outside its current span (§4.2 "Map algorithm"). It returns the entry
// that was displaced, if any.
func (s *Space) Project(addr uint64, entry value.Entry) (value.Entry, error) {
	root, displaced, err := value.Map(s.root, addr, entry)
	if err != nil {
		return value.Entry{}, fmt.Errorf("aspace: project %#x: %w", addr, err)
	}

	s.root = root

	return displaced, nil
}

// Unproject removes and returns the mapping covering addr, if any.
func (s *Space) Unproject(addr uint64) (value.Entry, bool, error) {
	entry, ok, err := value.Unmap(s.root, addr)
	if err != nil {
		return value.Entry{}, false, fmt.Errorf("aspace: unproject %#x: %w", addr, err)
	}

	return entry, ok, nil
}
