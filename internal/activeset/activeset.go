// Package activeset provides the shared, mutex-protected active-tasks set
// that the processing and evaluation stages both claim task directories
// through before working on them.
//
// It is a single dependency-injected component shared across stages rather
// than a per-stage or package-level singleton (see SPEC_FULL.md §9): the
// same race — a filesystem listing can show the same directory to more
// than one worker inside a single poll tick — occurs identically in both
// stages, so one set keyed by absolute path is simpler to audit than two.
package activeset

import "sync"

// Set is a concurrency-safe set of absolute task directory paths currently
// held by some worker, in any stage.
type Set struct {
	mu      sync.Mutex
	holding map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{holding: make(map[string]struct{})}
}

// TryClaim attempts to insert path into the set. It reports true if path
// was not already present (the caller now owns it), or false if another
// worker already holds it (the caller must skip this task directory).
func (s *Set) TryClaim(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.holding[path]; held {
		return false
	}
	s.holding[path] = struct{}{}
	return true
}

// Release removes path from the set, relinquishing the claim. Safe to call
// even if path was never claimed.
func (s *Set) Release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holding, path)
}

// Holds reports whether path is currently claimed by some worker. Used by
// the startup janitor to avoid sweeping a task a worker is actively
// handling.
func (s *Set) Holds(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.holding[path]
	return held
}
