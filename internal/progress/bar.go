// Package progress renders scan events to a terminal: a single-line progress
// bar that is redrawn in place, with checkpoint lines printed above it.
package progress

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/nvandessel/collatzmap/internal/constants"
	"github.com/nvandessel/collatzmap/internal/scan"
)

// ANSI sequences used by the renderer.
const (
	ansiReset     = "\033[0m"
	ansiGreen     = "\033[92m"
	ansiBlue      = "\033[94m"
	ansiClearLine = "\r\x1b[2K"
)

// Line formats a progress bar line for done out of total after elapsed.
func Line(done, total uint64, elapsed time.Duration, width int) string {
	if total == 0 {
		total = 1
	}
	if width < 1 {
		width = constants.DefaultBarWidth
	}
	frac := float64(done) / float64(total)
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("=", filled) + strings.Repeat("-", width-filled)

	eta := math.Inf(1)
	if secs := elapsed.Seconds(); secs > 0 && done > 0 {
		rate := float64(done) / secs
		remain := float64(total) - float64(done)
		eta = remain / rate
	}

	return fmt.Sprintf("[%s] %6.2f%% | %d/%d | %s", bar, frac*100, done, total, FormatETA(eta))
}

// FormatETA renders a remaining time in seconds. +Inf renders as "ETA ∞".
func FormatETA(seconds float64) string {
	if math.IsInf(seconds, 1) || math.IsNaN(seconds) {
		return "ETA ∞"
	}
	s := int64(seconds)
	if s < 0 {
		s = 0
	}
	m, s := s/60, s%60
	h, m := m/60, m%60
	switch {
	case h > 0:
		return fmt.Sprintf("ETA %dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("ETA %dm%02ds", m, s)
	default:
		return fmt.Sprintf("ETA %ds", s)
	}
}

// Renderer draws scan events. It implements scan.Observer.
type Renderer struct {
	w     io.Writer
	width int
	color bool
	last  scan.Progress
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, width int, color bool) *Renderer {
	if width < 1 {
		width = constants.DefaultBarWidth
	}
	return &Renderer{w: w, width: width, color: color}
}

// Start draws the empty bar for a scan of total starts.
func (r *Renderer) Start(total uint64) {
	r.last = scan.Progress{Total: total}
	r.redraw()
}

// Progress records the latest progress. The bar is only redrawn on
// heartbeats and checkpoints.
func (r *Renderer) Progress(p scan.Progress) {
	r.last = p
}

// Heartbeat redraws the bar.
func (r *Renderer) Heartbeat() {
	r.redraw()
}

// Checkpoint prints the checkpoint line above the bar.
func (r *Renderer) Checkpoint(c scan.Checkpoint) {
	r.PrintAbove(CheckpointLine(c, r.color))
}

// PrintAbove clears the bar line, prints msg on its own line and redraws
// the bar below it.
func (r *Renderer) PrintAbove(msg string) {
	fmt.Fprint(r.w, ansiClearLine)
	fmt.Fprintln(r.w, msg)
	r.redraw()
}

// Finish redraws the bar one last time and prints "Done.".
func (r *Renderer) Finish() {
	r.redraw()
	fmt.Fprint(r.w, "\nDone.\n")
}

func (r *Renderer) redraw() {
	fmt.Fprint(r.w, "\r"+Line(r.last.Done, r.last.Total, r.last.Elapsed, r.width))
}

// CheckpointLine formats a checkpoint as "2^k <discovered>% <known>%",
// with percentages scaled to [0, 100].
func CheckpointLine(c scan.Checkpoint, color bool) string {
	d := fmt.Sprintf("%.*f%%", constants.PercentPrecision, c.DiscoveredPct*100)
	k := fmt.Sprintf("%.*f%%", constants.PercentPrecision, c.KnownPct*100)
	if color {
		d = ansiGreen + d + ansiReset
		k = ansiBlue + k + ansiReset
	}
	return fmt.Sprintf("2^%d %s %s", c.Power, d, k)
}
