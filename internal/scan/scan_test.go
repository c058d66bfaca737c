package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nvandessel/collatzmap/internal/collatz"
	"github.com/nvandessel/collatzmap/internal/runs"
)

// recorder captures every event in arrival order.
type recorder struct {
	progress    []Progress
	checkpoints []Checkpoint
	heartbeats  []uint64 // start at which each heartbeat fired
}

func (r *recorder) Progress(p Progress)     { r.progress = append(r.progress, p) }
func (r *recorder) Checkpoint(c Checkpoint) { r.checkpoints = append(r.checkpoints, c) }
func (r *recorder) Heartbeat() {
	r.heartbeats = append(r.heartbeats, r.progress[len(r.progress)-1].Start)
}

func runScan(t *testing.T, opts Options) (*Summary, *recorder) {
	t.Helper()
	rec := &recorder{}
	summary, err := Run(context.Background(), opts, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return summary, rec
}

func TestTotalStarts(t *testing.T) {
	tests := []struct {
		max, want uint64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{7, 4},
		{8, 4},
		{1<<27 + 5, 1<<26 + 3},
	}
	for _, tt := range tests {
		if got := TotalStarts(tt.max); got != tt.want {
			t.Errorf("TotalStarts(%d) = %d, want %d", tt.max, got, tt.want)
		}
	}
}

func TestRun_SeedOnly(t *testing.T) {
	summary, rec := runScan(t, Options{MaxValue: 1})

	if summary.Processed != 1 || summary.Total != 1 {
		t.Errorf("Processed/Total = %d/%d, want 1/1", summary.Processed, summary.Total)
	}
	if summary.DiscoveredPct != 0 || summary.KnownPct != 0 {
		t.Errorf("percentages = (%v, %v), want (0, 0)", summary.DiscoveredPct, summary.KnownPct)
	}
	if summary.Pairs != 0 {
		t.Errorf("Pairs = %d, want 0", summary.Pairs)
	}
	if len(rec.checkpoints) != 0 {
		t.Errorf("got %d checkpoints, want 0", len(rec.checkpoints))
	}
	if len(rec.heartbeats) != 1 || rec.heartbeats[0] != 1 {
		t.Errorf("heartbeats = %v, want [1]", rec.heartbeats)
	}
}

func TestRun_SmallScenario(t *testing.T) {
	summary, rec := runScan(t, Options{MaxValue: 7})

	wantClasses := []collatz.Classification{collatz.Known, collatz.Discovered, collatz.Known, collatz.Known}
	if len(rec.progress) != len(wantClasses) {
		t.Fatalf("got %d progress events, want %d", len(rec.progress), len(wantClasses))
	}
	for i, p := range rec.progress {
		if p.Class != wantClasses[i] {
			t.Errorf("start %d class = %s, want %s", p.Start, p.Class, wantClasses[i])
		}
		if p.Done != uint64(i+1) || p.Total != 4 {
			t.Errorf("progress %d = %d/%d, want %d/4", i, p.Done, p.Total, i+1)
		}
	}

	// Boundaries 3 and 7 are below the deferral cutoff and fire immediately.
	if len(rec.checkpoints) != 2 {
		t.Fatalf("got %d checkpoints, want 2", len(rec.checkpoints))
	}
	for i, want := range []struct {
		power    uint
		boundary uint64
	}{{2, 3}, {3, 7}} {
		c := rec.checkpoints[i]
		if c.Power != want.power || c.Boundary != want.boundary || c.EmittedAt != want.boundary || c.Deferred {
			t.Errorf("checkpoint %d = %+v, want power %d at %d", i, c, want.power, want.boundary)
		}
	}

	// D(1) is pending and K(2) is still open, so nothing is paired yet.
	if summary.Pairs != 0 || summary.TotalDiscovered.Sign() != 0 || summary.TotalKnown.Sign() != 0 {
		t.Errorf("summary totals = %s/%s pairs %d, want zero", summary.TotalDiscovered, summary.TotalKnown, summary.Pairs)
	}
	if summary.MemoSize != 7 {
		t.Errorf("MemoSize = %d, want 7 ({1,3,5,7,11,13,17})", summary.MemoSize)
	}
}

func TestRun_TotalsMatchAccumulatorReplay(t *testing.T) {
	summary, rec := runScan(t, Options{MaxValue: 1 << 12})

	var acc runs.Accumulator
	for _, p := range rec.progress {
		if p.Start != 1 {
			acc.Observe(p.Class)
		}
	}
	d, k := acc.Totals()
	if d.Cmp(summary.TotalDiscovered) != 0 || k.Cmp(summary.TotalKnown) != 0 {
		t.Errorf("summary totals = %s/%s, replay = %s/%s", summary.TotalDiscovered, summary.TotalKnown, d, k)
	}
	if summary.Pairs == 0 {
		t.Error("expected at least one completed pair over 2^12")
	}
	sum := summary.DiscoveredPct + summary.KnownPct
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("percentages sum to %v, want 1", sum)
	}
}

func TestRun_CheckpointTiming(t *testing.T) {
	summary, rec := runScan(t, Options{MaxValue: 1 << 14})

	classAt := make(map[uint64]collatz.Classification, len(rec.progress))
	for _, p := range rec.progress {
		classAt[p.Start] = p.Class
	}

	var lastPower uint
	for _, c := range rec.checkpoints {
		if c.Power <= lastPower {
			t.Errorf("checkpoint powers not ascending: %d after %d", c.Power, lastPower)
		}
		lastPower = c.Power

		if c.Boundary != uint64(1)<<c.Power-1 {
			t.Errorf("checkpoint %d boundary = %d", c.Power, c.Boundary)
		}

		if c.Boundary < 17 {
			if c.Deferred || c.EmittedAt != c.Boundary {
				t.Errorf("early checkpoint %d deferred to %d", c.Power, c.EmittedAt)
			}
			continue
		}

		if !c.Deferred || c.EmittedAt <= c.Boundary {
			t.Errorf("late checkpoint %d emitted at %d, want after %d", c.Power, c.EmittedAt, c.Boundary)
		}
		// Fires where a Discovered run turns into a Known run.
		if classAt[c.EmittedAt] != collatz.Known || classAt[c.EmittedAt-2] != collatz.Discovered {
			t.Errorf("late checkpoint %d fired at %d (%s after %s)",
				c.Power, c.EmittedAt, classAt[c.EmittedAt], classAt[c.EmittedAt-2])
		}
		if c.Processed != (c.EmittedAt+1)/2 {
			t.Errorf("checkpoint %d processed = %d at start %d", c.Power, c.Processed, c.EmittedAt)
		}
	}

	if len(summary.Checkpoints) != len(rec.checkpoints) {
		t.Errorf("summary has %d checkpoints, observer saw %d", len(summary.Checkpoints), len(rec.checkpoints))
	}
	if len(rec.checkpoints) < 3 {
		t.Errorf("got %d checkpoints, want at least the immediate ones", len(rec.checkpoints))
	}
}

func TestRun_HeartbeatCadence(t *testing.T) {
	_, rec := runScan(t, Options{MaxValue: 40, HeartbeatInterval: 8})

	want := []uint64{1, 9, 17, 25, 33}
	if len(rec.heartbeats) != len(want) {
		t.Fatalf("heartbeats = %v, want %v", rec.heartbeats, want)
	}
	for i := range want {
		if rec.heartbeats[i] != want[i] {
			t.Errorf("heartbeats = %v, want %v", rec.heartbeats, want)
			break
		}
	}
}

func TestRun_ElapsedUsesClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	summary, rec := runScan(t, Options{MaxValue: 5, Now: clock})

	if !summary.StartedAt.Equal(base.Add(time.Second)) {
		t.Errorf("StartedAt = %v", summary.StartedAt)
	}
	for i := 1; i < len(rec.progress); i++ {
		if rec.progress[i].Elapsed <= rec.progress[i-1].Elapsed {
			t.Errorf("elapsed not increasing: %v then %v", rec.progress[i-1].Elapsed, rec.progress[i].Elapsed)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, Options{MaxValue: 1 << 20}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if summary == nil || !summary.Interrupted {
		t.Fatalf("summary = %+v, want interrupted summary", summary)
	}
	if summary.Processed != 1 || summary.LastStart != 1 {
		t.Errorf("Processed = %d LastStart = %d, want 1/1", summary.Processed, summary.LastStart)
	}
}

func TestRun_InvalidMax(t *testing.T) {
	if _, err := Run(context.Background(), Options{}, nil); err == nil {
		t.Error("Run() with zero max should fail")
	}
}

func TestPrime(t *testing.T) {
	memo, err := Prime(context.Background(), 7)
	if err != nil {
		t.Fatalf("Prime() error = %v", err)
	}
	// Walks of 1, 3, 5 leave {1, 3, 5}.
	if memo.Len() != 3 {
		t.Errorf("memo size = %d, want 3", memo.Len())
	}

	class, visited, err := collatz.WalkUint64(7, memo)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if class != collatz.Known || visited.Len() != 5 {
		t.Errorf("Walk(7) = %s with %d visited, want known with 5", class, visited.Len())
	}
}

func TestCheckpointer(t *testing.T) {
	const (
		D = collatz.Discovered
		K = collatz.Known
	)

	cp := newCheckpointer()
	if due := cp.step(3, "", D); len(due) != 1 || due[0] != 2 {
		t.Errorf("step(3) = %v, want [2]", due)
	}
	if due := cp.step(7, D, K); len(due) != 1 || due[0] != 3 {
		t.Errorf("step(7) = %v, want [3]", due)
	}
	if due := cp.step(15, K, K); len(due) != 1 || due[0] != 4 {
		t.Errorf("step(15) = %v, want [4]", due)
	}

	// 31 is a late boundary: armed, not reported.
	if due := cp.step(31, K, D); len(due) != 0 {
		t.Errorf("step(31) = %v, want none", due)
	}
	if p, ok := cp.pending(); !ok || p != 5 {
		t.Errorf("pending() = (%d, %v), want (5, true)", p, ok)
	}

	// Known after Known does not release it.
	if due := cp.step(33, K, K); len(due) != 0 {
		t.Errorf("step(33) = %v, want none", due)
	}
	// Discovered -> Known releases it with the armed power.
	if due := cp.step(35, D, K); len(due) != 1 || due[0] != 5 {
		t.Errorf("step(35) = %v, want [5]", due)
	}
	if _, ok := cp.pending(); ok {
		t.Error("pending() still set after release")
	}
	if due := cp.step(37, D, K); len(due) != 0 {
		t.Errorf("step(37) = %v, want none once released", due)
	}
}

func TestCheckpointer_NewerBoundaryOverwritesPending(t *testing.T) {
	const (
		D = collatz.Discovered
		K = collatz.Known
	)

	cp := newCheckpointer()
	for _, n := range []uint64{3, 7, 15} {
		cp.step(n, K, K)
	}

	if due := cp.step(31, K, K); len(due) != 0 {
		t.Errorf("step(31) = %v, want none", due)
	}
	for n := uint64(33); n < 63; n += 2 {
		if due := cp.step(n, K, K); len(due) != 0 {
			t.Fatalf("step(%d) = %v, want none while 2^5 waits", n, due)
		}
	}

	// 63 arrives before any Discovered -> Known turn and replaces 2^5.
	if due := cp.step(63, K, K); len(due) != 0 {
		t.Errorf("step(63) = %v, want none", due)
	}
	if p, ok := cp.pending(); !ok || p != 6 {
		t.Errorf("pending() = (%d, %v), want (6, true)", p, ok)
	}

	if due := cp.step(65, D, K); len(due) != 1 || due[0] != 6 {
		t.Errorf("step(65) = %v, want only [6]", due)
	}
	if _, ok := cp.pending(); ok {
		t.Error("pending() still set after release")
	}
}
