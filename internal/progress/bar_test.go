package progress

import (
	"bytes"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/collatzmap/internal/scan"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"infinite", math.Inf(1), "ETA ∞"},
		{"zero", 0, "ETA 0s"},
		{"seconds", 42.9, "ETA 42s"},
		{"minutes", 125, "ETA 2m05s"},
		{"hours", 3*3600 + 4*60 + 5, "ETA 3h04m05s"},
		{"negative clamps", -3, "ETA 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatETA(tt.seconds); got != tt.want {
				t.Errorf("FormatETA(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name    string
		done    uint64
		total   uint64
		elapsed time.Duration
		width   int
		want    string
	}{
		{
			name:  "nothing done",
			done:  0,
			total: 10,
			width: 10,
			want:  "[----------]   0.00% | 0/10 | ETA ∞",
		},
		{
			name:    "half done",
			done:    5,
			total:   10,
			elapsed: 10 * time.Second,
			width:   10,
			want:    "[=====-----]  50.00% | 5/10 | ETA 10s",
		},
		{
			name:    "complete",
			done:    4,
			total:   4,
			elapsed: time.Second,
			width:   4,
			want:    "[====] 100.00% | 4/4 | ETA 0s",
		},
		{
			name:  "zero total treated as one",
			done:  0,
			total: 0,
			width: 2,
			want:  "[--]   0.00% | 0/1 | ETA ∞",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Line(tt.done, tt.total, tt.elapsed, tt.width)
			if got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckpointLine(t *testing.T) {
	c := scan.Checkpoint{
		Power:           3,
		DiscoveredPct:   1.0 / 3.0,
		KnownPct:        2.0 / 3.0,
		TotalDiscovered: big.NewInt(1),
		TotalKnown:      big.NewInt(2),
	}

	plain := CheckpointLine(c, false)
	if plain != "2^3 33.33333333% 66.66666667%" {
		t.Errorf("CheckpointLine(plain) = %q", plain)
	}

	colored := CheckpointLine(c, true)
	if !strings.Contains(colored, ansiGreen+"33.33333333%"+ansiReset) {
		t.Errorf("colored line missing green discovered share: %q", colored)
	}
	if !strings.Contains(colored, ansiBlue+"66.66666667%"+ansiReset) {
		t.Errorf("colored line missing blue known share: %q", colored)
	}
}

func TestRenderer_Events(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 4, false)

	r.Start(2)
	if !strings.HasPrefix(buf.String(), "\r[----]") {
		t.Errorf("Start() output = %q, want empty bar", buf.String())
	}

	buf.Reset()
	r.Progress(scan.Progress{Done: 1, Total: 2, Elapsed: time.Second})
	if buf.Len() != 0 {
		t.Errorf("Progress() wrote %q, want nothing", buf.String())
	}

	r.Heartbeat()
	if !strings.Contains(buf.String(), "[==--]  50.00% | 1/2") {
		t.Errorf("Heartbeat() output = %q", buf.String())
	}

	buf.Reset()
	r.Checkpoint(scan.Checkpoint{Power: 2})
	out := buf.String()
	if !strings.HasPrefix(out, ansiClearLine+"2^2 0.00000000% 0.00000000%\n") {
		t.Errorf("Checkpoint() output = %q", out)
	}
	if !strings.Contains(out, "\r[==--]") {
		t.Errorf("Checkpoint() did not redraw bar: %q", out)
	}

	buf.Reset()
	r.Finish()
	if !strings.HasSuffix(buf.String(), "\nDone.\n") {
		t.Errorf("Finish() output = %q", buf.String())
	}
}

func TestRenderer_ImplementsObserver(t *testing.T) {
	var _ scan.Observer = NewRenderer(&bytes.Buffer{}, 0, false)
}
