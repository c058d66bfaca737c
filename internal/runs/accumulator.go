// Package runs folds a stream of walk classifications into alternating runs
// and keeps cumulative tallies over completed Discovered/Known pairs.
package runs

import (
	"math/big"

	"github.com/nvandessel/collatzmap/internal/collatz"
)

// Accumulator tracks the current run and the pairing state.
// The zero value is ready to use.
type Accumulator struct {
	current    collatz.Classification // "" before the first observation
	currentLen uint64

	pendingDiscovered    uint64
	hasPendingDiscovered bool

	totalDiscovered big.Int
	totalKnown      big.Int
	pairs           uint64
}

// Observe folds one classification into the run state.
// It returns true if this observation completed a pair.
func (a *Accumulator) Observe(c collatz.Classification) bool {
	if a.current == "" {
		a.current = c
		a.currentLen = 1
		return false
	}
	if c == a.current {
		a.currentLen++
		return false
	}

	closed := false
	switch a.current {
	case collatz.Discovered:
		// Only the latest unpaired Discovered run is remembered.
		a.pendingDiscovered = a.currentLen
		a.hasPendingDiscovered = true
	case collatz.Known:
		if a.hasPendingDiscovered {
			a.totalDiscovered.Add(&a.totalDiscovered, new(big.Int).SetUint64(a.pendingDiscovered))
			a.totalKnown.Add(&a.totalKnown, new(big.Int).SetUint64(a.currentLen))
			a.hasPendingDiscovered = false
			a.pendingDiscovered = 0
			a.pairs++
			closed = true
		}
	}

	a.current = c
	a.currentLen = 1
	return closed
}

// Current returns the classification and length of the run in progress.
// The classification is empty before the first observation.
func (a *Accumulator) Current() (collatz.Classification, uint64) {
	return a.current, a.currentLen
}

// Pending returns the length of the closed Discovered run awaiting its
// Known partner, if any.
func (a *Accumulator) Pending() (uint64, bool) {
	return a.pendingDiscovered, a.hasPendingDiscovered
}

// Pairs returns the number of completed pairs.
func (a *Accumulator) Pairs() uint64 {
	return a.pairs
}

// Totals returns copies of the cumulative Discovered and Known tallies.
func (a *Accumulator) Totals() (discovered, known *big.Int) {
	return new(big.Int).Set(&a.totalDiscovered), new(big.Int).Set(&a.totalKnown)
}

// Percentages returns the Discovered and Known shares of all completed pairs
// as ratios in [0, 1]. Both are zero until the first pair completes.
func (a *Accumulator) Percentages() (discovered, known float64) {
	sum := new(big.Int).Add(&a.totalDiscovered, &a.totalKnown)
	if sum.Sign() == 0 {
		return 0, 0
	}
	discovered, _ = new(big.Rat).SetFrac(&a.totalDiscovered, sum).Float64()
	known, _ = new(big.Rat).SetFrac(&a.totalKnown, sum).Float64()
	return discovered, known
}
