// Package rng provides the random stream used by stochastic ops.
//
// The full generator state serialises to an opaque blob. Restoring a blob and
// replaying the same draws reproduces them exactly, which is what checkpoint
// recompute needs for ops like dropout.
package rng

import (
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
)

// Source is a seeded PCG stream. It is safe for concurrent use.
type Source struct {
	mu  sync.Mutex
	pcg *rand.PCG
}

// New creates a Source seeded with seed.
func New(seed uint64) *Source {
	return &Source{pcg: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.pcg.Uint64()>>11) / (1 << 53)
}

// Save returns the current generator state.
func (s *Source) Save() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, err := s.pcg.MarshalBinary()
	if err != nil {
		// PCG.MarshalBinary never fails.
		panic(err)
	}
	return blob
}

// Restore replaces the generator state with a blob produced by Save.
func (s *Source) Restore(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pcg.UnmarshalBinary(blob); err != nil {
		return errors.Wrap(err, "rng: invalid state blob")
	}
	return nil
}
