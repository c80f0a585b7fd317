package engine

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers shared by
// every symbol in the process. Each submission (including rejected
// ones), each fill, and each cancel consumes one number, giving a total
// order over events for deterministic replay.
type Sequencer struct {
	last atomic.Uint64
}

// NewSequencer creates a sequencer that continues after the given
// sequence number, typically the store's maximum persisted sequence.
func NewSequencer(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

// Next returns the next sequence number. Safe for concurrent use.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the most recently issued sequence number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
