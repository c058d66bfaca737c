package scan

import (
	"math/big"
	"time"

	"github.com/nvandessel/collatzmap/internal/collatz"
)

// Progress is the monotonic progress signal emitted after every start.
type Progress struct {
	Start   uint64                 `json:"start"`
	Class   collatz.Classification `json:"class"`
	Done    uint64                 `json:"done"`
	Total   uint64                 `json:"total"`
	Elapsed time.Duration          `json:"elapsed"`
}

// Checkpoint reports the cumulative split at a power-of-two boundary.
type Checkpoint struct {
	// Power is k for the boundary 2^k - 1.
	Power uint `json:"power"`

	// Boundary is 2^k - 1.
	Boundary uint64 `json:"boundary"`

	// EmittedAt is the start at which the checkpoint fired. It equals
	// Boundary unless the checkpoint was deferred.
	EmittedAt uint64 `json:"emitted_at"`

	// Deferred is true if the checkpoint waited for a run pair to close.
	Deferred bool `json:"deferred"`

	Processed       uint64   `json:"processed"`
	DiscoveredPct   float64  `json:"discovered_pct"`
	KnownPct        float64  `json:"known_pct"`
	TotalDiscovered *big.Int `json:"total_discovered"`
	TotalKnown      *big.Int `json:"total_known"`
}

// Observer receives scan events. Calls happen on the scanning goroutine in
// this order per start: Progress, then any Checkpoints, then Heartbeat.
type Observer interface {
	Progress(p Progress)
	Checkpoint(c Checkpoint)
	Heartbeat()
}

// Funcs adapts plain functions to Observer. Nil fields are skipped.
type Funcs struct {
	OnProgress   func(Progress)
	OnCheckpoint func(Checkpoint)
	OnHeartbeat  func()
}

func (f Funcs) Progress(p Progress) {
	if f.OnProgress != nil {
		f.OnProgress(p)
	}
}

func (f Funcs) Checkpoint(c Checkpoint) {
	if f.OnCheckpoint != nil {
		f.OnCheckpoint(c)
	}
}

func (f Funcs) Heartbeat() {
	if f.OnHeartbeat != nil {
		f.OnHeartbeat()
	}
}

// Multi fans events out to several observers in order.
type Multi []Observer

func (m Multi) Progress(p Progress) {
	for _, o := range m {
		o.Progress(p)
	}
}

func (m Multi) Checkpoint(c Checkpoint) {
	for _, o := range m {
		o.Checkpoint(c)
	}
}

func (m Multi) Heartbeat() {
	for _, o := range m {
		o.Heartbeat()
	}
}
