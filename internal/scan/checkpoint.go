package scan

import (
	"github.com/nvandessel/collatzmap/internal/collatz"
	"github.com/nvandessel/collatzmap/internal/constants"
)

// checkpointer decides when a power-of-two boundary is reported.
// It is kept apart from the run accumulator: it only sees the run
// classification before and after each observation.
type checkpointer struct {
	nextPow  uint // power whose boundary 2^nextPow - 1 comes next
	awaiting bool // a late boundary is waiting for a Discovered->Known turn
	armedPow uint // power of the boundary that set awaiting
}

func newCheckpointer() *checkpointer {
	return &checkpointer{nextPow: constants.FirstCheckpointPower}
}

// step is called once per processed start n, after the accumulator has seen
// it. prev is the run classification after the previous start, cur the run
// classification now. It returns the powers to report at this start, in
// order.
func (c *checkpointer) step(n uint64, prev, cur collatz.Classification) []uint {
	var due []uint

	if c.awaiting && cur == collatz.Known && prev == collatz.Discovered {
		due = append(due, c.armedPow)
		c.awaiting = false
	}

	if c.nextPow < 64 && n+1 == uint64(1)<<c.nextPow {
		if n >= constants.DeferredCheckpointThreshold {
			c.awaiting = true
			c.armedPow = c.nextPow
		} else {
			due = append(due, c.nextPow)
		}
		c.nextPow++
	}

	return due
}

// pending returns the armed power if a deferred checkpoint has not fired.
func (c *checkpointer) pending() (uint, bool) {
	return c.armedPow, c.awaiting
}
