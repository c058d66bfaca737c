package collatz

import (
	"errors"
	"fmt"
	"math/big"
)

// Classification labels the outcome of a single walk.
type Classification string

const (
	// Known means the start was already memoized, or its odd chain reached a
	// memoized odd value before the power-of-two tail.
	Known Classification = "known"

	// Discovered means the walk reached the power-of-two tail without
	// meeting a memoized odd value.
	Discovered Classification = "discovered"
)

// Valid returns true if c is one of the defined classifications.
func (c Classification) Valid() bool {
	return c == Known || c == Discovered
}

// ErrInvalidStart is returned when a walk is asked to start from a value
// that is not a positive odd integer.
var ErrInvalidStart = errors.New("start must be a positive odd integer")

var (
	one   = big.NewInt(1)
	three = big.NewInt(3)
)

// Step applies the Collatz map to n in place and returns n.
func Step(n *big.Int) *big.Int {
	if n.Bit(0) == 0 {
		return n.Rsh(n, 1)
	}
	n.Mul(n, three)
	return n.Add(n, one)
}

// IsPowerOfTwo reports whether n is 2^k for some k >= 0.
func IsPowerOfTwo(n *big.Int) bool {
	if n.Sign() <= 0 {
		return false
	}
	return n.TrailingZeroBits() == uint(n.BitLen()-1)
}

// Walk follows the trajectory of start and collects the odd values it
// visits. It stops at the first memoized odd value (Known) or at the
// power-of-two tail (Discovered). memo is only read; merging the returned
// set into it is the caller's job.
//
// Walk does not return for a start whose trajectory never reaches either
// stopping condition.
func Walk(start *big.Int, memo *Set) (Classification, *Set, error) {
	if start == nil || start.Sign() <= 0 || start.Bit(0) == 0 {
		return "", nil, fmt.Errorf("walk %v: %w", start, ErrInvalidStart)
	}

	visited := NewSet()
	visited.Add(start)

	if memo.Contains(start) {
		return Known, visited, nil
	}

	cur := new(big.Int).Set(start)
	for {
		Step(cur)
		if cur.Bit(0) == 1 {
			visited.Add(cur)
			if memo.Contains(cur) {
				return Known, visited, nil
			}
		}
		if IsPowerOfTwo(cur) {
			return Discovered, visited, nil
		}
	}
}

// WalkUint64 is Walk for a start that fits in a machine word.
func WalkUint64(start uint64, memo *Set) (Classification, *Set, error) {
	return Walk(new(big.Int).SetUint64(start), memo)
}
