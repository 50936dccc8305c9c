package manifest

import (
	"sync/atomic"
)

// Store holds the current manifest snapshot for a build.
// Readers never block and never observe a half-updated manifest: Replace swaps the
// whole Descriptor pointer.
type Store struct {
	current    atomic.Pointer[Descriptor]
	generation atomic.Uint64
}

// NewStore creates a store seeded with an initial descriptor (may be nil)
func NewStore(initial *Descriptor) *Store {
	s := &Store{}
	if initial != nil {
		s.Replace(initial)
	}
	return s
}

// Load returns the current snapshot, or nil before the first Replace (LOCK-FREE)
func (s *Store) Load() *Descriptor {
	return s.current.Load()
}

// Replace installs a new snapshot and returns the new generation number
func (s *Store) Replace(d *Descriptor) uint64 {
	s.current.Store(d)
	return s.generation.Add(1)
}

// Generation increments on every Replace; cached per-file results keyed on an older
// generation are stale.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}
