// Package draw provides the random source used for winner and prize draws.
package draw

import (
	"math/rand"
	"sync"
	"time"
)

// Source picks uniform indexes. Implementations must be safe for concurrent use.
type Source interface {
	// Intn returns a value in [0, n). n must be positive.
	Intn(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a Source seeded with seed, or with the clock when seed is 0.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // draws are not security sensitive
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Pick returns a uniformly drawn element of items. ok is false when items is empty.
func Pick[T any](src Source, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[src.Intn(len(items))], true
}

// Fixed replays idx in order, wrapping around, each value reduced modulo n.
// It exists for deterministic tests.
type Fixed struct {
	mu   sync.Mutex
	idx  []int
	next int
}

// NewFixed returns a Fixed source replaying idx.
func NewFixed(idx ...int) *Fixed {
	return &Fixed{idx: idx}
}

// Intn implements Source.
func (f *Fixed) Intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.idx) == 0 {
		return 0
	}
	v := f.idx[f.next%len(f.idx)]
	f.next++
	if v < 0 {
		v = -v
	}
	return v % n
}
