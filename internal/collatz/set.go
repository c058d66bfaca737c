// Package collatz implements the trajectory walker and the odd-value
// memoization set it consults.
package collatz

import (
	"math/big"
	"sort"
)

// Set is a set of arbitrary-precision integers.
// Values that fit in a uint64 are kept in a native map; larger values are
// keyed by their big-endian byte encoding. The zero value is not usable;
// call NewSet.
type Set struct {
	small map[uint64]struct{}
	large map[string]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		small: make(map[uint64]struct{}),
		large: make(map[string]struct{}),
	}
}

// NewMemo returns the memoization set a scan starts from: {1}.
func NewMemo() *Set {
	s := NewSet()
	s.small[1] = struct{}{}
	return s
}

// Add inserts v. The set does not retain v.
func (s *Set) Add(v *big.Int) {
	if v.IsUint64() {
		s.small[v.Uint64()] = struct{}{}
		return
	}
	s.large[string(v.Bytes())] = struct{}{}
}

// Contains reports whether v is in the set.
func (s *Set) Contains(v *big.Int) bool {
	if v.IsUint64() {
		_, ok := s.small[v.Uint64()]
		return ok
	}
	_, ok := s.large[string(v.Bytes())]
	return ok
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.small) + len(s.large)
}

// Merge adds every element of other to s.
func (s *Set) Merge(other *Set) {
	for v := range other.small {
		s.small[v] = struct{}{}
	}
	for k := range other.large {
		s.large[k] = struct{}{}
	}
}

// Values returns the elements in ascending order.
func (s *Set) Values() []*big.Int {
	out := make([]*big.Int, 0, s.Len())
	for v := range s.small {
		out = append(out, new(big.Int).SetUint64(v))
	}
	for k := range s.large {
		out = append(out, new(big.Int).SetBytes([]byte(k)))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}
