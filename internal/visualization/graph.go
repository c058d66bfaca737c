// Package visualization renders walk trajectories as graphs.
package visualization

import (
	"fmt"
	"math/big"

	"github.com/nvandessel/collatzmap/internal/collatz"
)

// Node kinds.
const (
	KindStart = "start"
	KindOdd   = "odd"
	KindMemo  = "memo" // first memoized value reached; the walk stops here
	KindTail  = "tail" // power of two that ends a discovered walk
)

// Node is a value on the trajectory.
type Node struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Edge links an odd value to the next value the walk stops at.
// Halvings counts the divisions by two taken after 3n+1.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Halvings uint   `json:"halvings"`
}

// Graph is the odd-value trajectory of a single walk.
type Graph struct {
	Start          string                 `json:"start"`
	Classification collatz.Classification `json:"classification"`
	Nodes          []Node                 `json:"nodes"`
	Edges          []Edge                 `json:"edges"`
}

// Trajectory builds the graph of the walk from start against memo. The walk
// stops where collatz.Walk stops, so the classification is the same.
func Trajectory(start *big.Int, memo *collatz.Set) (*Graph, error) {
	if start == nil || start.Sign() <= 0 || start.Bit(0) == 0 {
		return nil, fmt.Errorf("trajectory %v: %w", start, collatz.ErrInvalidStart)
	}

	g := &Graph{Start: start.String()}
	cur := new(big.Int).Set(start)
	kind := KindStart
	for {
		if memo.Contains(cur) {
			g.Nodes = append(g.Nodes, Node{ID: cur.String(), Kind: KindMemo})
			g.Classification = collatz.Known
			return g, nil
		}
		g.Nodes = append(g.Nodes, Node{ID: cur.String(), Kind: kind})
		kind = KindOdd

		next := new(big.Int).Mul(cur, big.NewInt(3))
		next.Add(next, big.NewInt(1))
		halvings := next.TrailingZeroBits()

		if collatz.IsPowerOfTwo(next) {
			tail := fmt.Sprintf("2^%d", halvings)
			g.Nodes = append(g.Nodes, Node{ID: tail, Kind: KindTail})
			g.Edges = append(g.Edges, Edge{Source: cur.String(), Target: tail})
			g.Classification = collatz.Discovered
			return g, nil
		}

		next.Rsh(next, halvings)
		g.Edges = append(g.Edges, Edge{Source: cur.String(), Target: next.String(), Halvings: halvings})
		cur = next
	}
}
