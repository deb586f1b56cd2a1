package recql

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// AliasSource supplies the numeric suffix that disambiguates generated join
// aliases. Implementations must be safe for concurrent use.
type AliasSource interface {
	Next() int64
}

// CounterSource hands out increasing suffixes starting at 1.
type CounterSource struct {
	n atomic.Int64
}

// NewCounterSource creates a counter starting at 1.
func NewCounterSource() *CounterSource {
	return &CounterSource{}
}

// Next implements AliasSource.
func (s *CounterSource) Next() int64 {
	return s.n.Add(1)
}

// RandomSource draws suffixes from a seeded pseudo-random generator.
type RandomSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource creates a generator with the given seed.
func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rnd: rand.New(rand.NewSource(seed))} //nolint:gosec // aliases are not secrets
}

// Next implements AliasSource.
func (s *RandomSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Int63n(1_000_000)
}
