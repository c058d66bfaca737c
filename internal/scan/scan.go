// Package scan drives the walker over an ascending range of odd starts,
// folds each classification into the run accumulator and reports progress,
// checkpoints and heartbeats to an Observer.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/nvandessel/collatzmap/internal/collatz"
	"github.com/nvandessel/collatzmap/internal/constants"
	"github.com/nvandessel/collatzmap/internal/logging"
	"github.com/nvandessel/collatzmap/internal/runs"
)

// Options configures a scan.
type Options struct {
	// MaxValue is the inclusive upper bound of the scanned range.
	MaxValue uint64

	// HeartbeatInterval sets the heartbeat cadence: a heartbeat fires at
	// every start n with n % HeartbeatInterval == 1. Zero means the default.
	HeartbeatInterval uint64

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// Events receives structured scan events. Nil is allowed.
	Events *logging.EventLogger

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Summary describes a finished (or interrupted) scan.
type Summary struct {
	MaxValue          uint64        `json:"max_value"`
	Total             uint64        `json:"total"`
	Processed         uint64        `json:"processed"`
	LastStart         uint64        `json:"last_start"`
	Pairs             uint64        `json:"pairs"`
	TotalDiscovered   *big.Int      `json:"total_discovered"`
	TotalKnown        *big.Int      `json:"total_known"`
	DiscoveredPct     float64       `json:"discovered_pct"`
	KnownPct          float64       `json:"known_pct"`
	MemoSize          int           `json:"memo_size"`
	Checkpoints       []Checkpoint  `json:"checkpoints"`
	PendingCheckpoint *uint         `json:"pending_checkpoint,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	Interrupted       bool          `json:"interrupted"`
}

// TotalStarts returns the number of odd starts in [1, maxValue].
func TotalStarts(maxValue uint64) uint64 {
	if maxValue == 0 {
		return 0
	}
	return (maxValue-1)/2 + 1
}

// Run scans every odd start in [1, opts.MaxValue] in ascending order.
// The seed start 1 advances progress but is not fed to the accumulator.
//
// ctx is polled at heartbeat cadence. If it is cancelled, Run returns the
// summary so far together with ctx.Err().
func Run(ctx context.Context, opts Options, obs Observer) (*Summary, error) {
	if opts.MaxValue == 0 || opts.MaxValue == math.MaxUint64 {
		return nil, fmt.Errorf("max value must be in [1, %d], got %d", uint64(math.MaxUint64-1), opts.MaxValue)
	}
	if obs == nil {
		obs = Funcs{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.HeartbeatInterval
	if interval == 0 {
		interval = constants.HeartbeatInterval
	}

	total := TotalStarts(opts.MaxValue)
	started := now()

	memo := collatz.NewMemo()
	var acc runs.Accumulator
	cp := newCheckpointer()

	summary := &Summary{
		MaxValue:  opts.MaxValue,
		Total:     total,
		StartedAt: started,
	}

	logger.Info("scan started", "max_value", opts.MaxValue, "total", total)
	opts.Events.Log(map[string]any{
		"event":     "scan_started",
		"max_value": opts.MaxValue,
		"total":     total,
	})

	var prev collatz.Classification
	start := new(big.Int)
	for n := uint64(1); n <= opts.MaxValue; n += 2 {
		start.SetUint64(n)
		class, visited, err := collatz.Walk(start, memo)
		if err != nil {
			return nil, fmt.Errorf("walking %d: %w", n, err)
		}
		memo.Merge(visited)

		summary.Processed++
		summary.LastStart = n

		if n != 1 {
			acc.Observe(class)
		}
		cur, _ := acc.Current()

		obs.Progress(Progress{
			Start:   n,
			Class:   class,
			Done:    summary.Processed,
			Total:   total,
			Elapsed: now().Sub(started),
		})

		for _, power := range cp.step(n, prev, cur) {
			c := newCheckpoint(power, n, summary.Processed, &acc)
			summary.Checkpoints = append(summary.Checkpoints, c)
			logger.Debug("checkpoint", "power", c.Power, "discovered_pct", c.DiscoveredPct, "known_pct", c.KnownPct, "deferred", c.Deferred)
			opts.Events.Log(map[string]any{
				"event":          "checkpoint",
				"power":          c.Power,
				"emitted_at":     c.EmittedAt,
				"deferred":       c.Deferred,
				"discovered_pct": c.DiscoveredPct,
				"known_pct":      c.KnownPct,
			})
			obs.Checkpoint(c)
		}

		if n%interval == 1 {
			obs.Heartbeat()
			logger.Log(ctx, logging.LevelTrace, "heartbeat", "start", n, "memo_size", memo.Len())
			opts.Events.Trace(map[string]any{
				"event":     "heartbeat",
				"start":     n,
				"processed": summary.Processed,
				"memo_size": memo.Len(),
			})
			if err := ctx.Err(); err != nil {
				summary.Interrupted = true
				finish(summary, &acc, memo, cp, now().Sub(started))
				logger.Warn("scan interrupted", "last_start", n, "processed", summary.Processed)
				return summary, err
			}
		}

		prev = cur
	}

	finish(summary, &acc, memo, cp, now().Sub(started))
	logger.Info("scan finished",
		"processed", summary.Processed,
		"pairs", summary.Pairs,
		"discovered_pct", summary.DiscoveredPct,
		"known_pct", summary.KnownPct,
		"duration", summary.Duration)
	opts.Events.Log(map[string]any{
		"event":            "scan_finished",
		"processed":        summary.Processed,
		"pairs":            summary.Pairs,
		"total_discovered": summary.TotalDiscovered.String(),
		"total_known":      summary.TotalKnown.String(),
		"memo_size":        summary.MemoSize,
	})

	return summary, nil
}

func newCheckpoint(power uint, n, processed uint64, acc *runs.Accumulator) Checkpoint {
	d, k := acc.Percentages()
	td, tk := acc.Totals()
	boundary := uint64(1)<<power - 1
	return Checkpoint{
		Power:           power,
		Boundary:        boundary,
		EmittedAt:       n,
		Deferred:        n != boundary,
		Processed:       processed,
		DiscoveredPct:   d,
		KnownPct:        k,
		TotalDiscovered: td,
		TotalKnown:      tk,
	}
}

func finish(s *Summary, acc *runs.Accumulator, memo *collatz.Set, cp *checkpointer, elapsed time.Duration) {
	s.TotalDiscovered, s.TotalKnown = acc.Totals()
	s.DiscoveredPct, s.KnownPct = acc.Percentages()
	s.Pairs = acc.Pairs()
	s.MemoSize = memo.Len()
	s.Duration = elapsed
	if p, ok := cp.pending(); ok {
		s.PendingCheckpoint = &p
	}
}

// Prime builds the memoization set a scan would hold just before reaching
// start: every odd value below start has been walked and merged.
func Prime(ctx context.Context, start uint64) (*collatz.Set, error) {
	memo := collatz.NewMemo()
	n := new(big.Int)
	for v := uint64(1); v < start; v += 2 {
		if v%constants.HeartbeatInterval == 1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n.SetUint64(v)
		_, visited, err := collatz.Walk(n, memo)
		if err != nil {
			return nil, fmt.Errorf("walking %d: %w", v, err)
		}
		memo.Merge(visited)
	}
	return memo, nil
}
