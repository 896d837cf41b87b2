package store

import "sync/atomic"

// Sequencer provides monotonically increasing selection generations.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next generation.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// Current returns the latest generation handed out, 0 before the first.
func (s *Sequencer) Current() uint64 { return s.n.Load() }
