// Package testutil holds deterministic fixtures for scenario runs and tests:
// a trace sequence counter and throwaway SQLite databases.
package testutil

import "sync/atomic"

// Sequence numbers trace events. The first Next returns 1.
type Sequence struct {
	n atomic.Int64
}

// Next advances the sequence and returns the new value.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last value handed out, or 0.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}

// Reset rewinds the sequence so the same scenario numbers its events
// identically when run again.
func (s *Sequence) Reset() {
	s.n.Store(0)
}
