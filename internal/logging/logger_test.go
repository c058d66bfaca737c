package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"info level", "info"},
		{"debug level", "debug"},
		{"trace level", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)
			if logger == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewEventLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "info")

	// At info level, event logger should be nil
	if el != nil {
		t.Error("expected nil EventLogger at info level")
	}

	// Nil logger should still be safe to use
	el.Log(map[string]any{"event": "checkpoint"})
	el.Trace(map[string]any{"event": "heartbeat"})

	path := filepath.Join(dir, EventsFileName)
	if _, err := os.Stat(path); err == nil {
		t.Error("events.jsonl should not exist at info level")
	}
}

func TestNewEventLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	defer el.Close()

	el.Log(map[string]any{"event": "checkpoint", "power": 5, "known_pct": 0.75})

	data, err := os.ReadFile(filepath.Join(dir, EventsFileName))
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}

	if entry["event"] != "checkpoint" {
		t.Errorf("event = %v, want checkpoint", entry["event"])
	}
	if entry["power"] != float64(5) {
		t.Errorf("power = %v, want 5", entry["power"])
	}
	if entry["known_pct"] != 0.75 {
		t.Errorf("known_pct = %v, want 0.75", entry["known_pct"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in event entry")
	}
}

func TestEventLogger_TraceOnlyAtTraceLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantTrace bool
	}{
		{"debug", false},
		{"trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			dir := t.TempDir()
			el := NewEventLogger(dir, tt.level)
			defer el.Close()

			el.Log(map[string]any{"event": "scan_started"})
			el.Trace(map[string]any{"event": "heartbeat"})

			data, err := os.ReadFile(filepath.Join(dir, EventsFileName))
			if err != nil {
				t.Fatalf("failed to read events.jsonl: %v", err)
			}
			if !strings.Contains(string(data), "scan_started") {
				t.Error("expected scan_started in events.jsonl")
			}
			if got := strings.Contains(string(data), "heartbeat"); got != tt.wantTrace {
				t.Errorf("heartbeat logged = %v, want %v", got, tt.wantTrace)
			}
		})
	}
}

func TestEventLogger_MultipleWrites(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	defer el.Close()

	el.Log(map[string]any{"event": "first"})
	el.Log(map[string]any{"event": "second"})

	data, err := os.ReadFile(filepath.Join(dir, EventsFileName))
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}

func TestEventLogger_NilSafe(t *testing.T) {
	var el *EventLogger
	el.Log(map[string]any{"event": "should_not_panic"})
	el.Trace(map[string]any{"event": "should_not_panic"})
	el.Close()
}

func TestEventLogger_DoesNotMutateCallerMap(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	defer el.Close()

	event := map[string]any{"event": "test"}
	el.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestEventLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")

	el.Log(map[string]any{"event": "before_close"})
	el.Close()

	// Should be a no-op, not panic or error
	el.Log(map[string]any{"event": "after_close"})
}

func TestNewEventLogger_CreatesDir(t *testing.T) {
	base := t.TempDir()
	nestedDir := filepath.Join(base, "sub", "dir")

	el := NewEventLogger(nestedDir, "debug")
	if el == nil {
		t.Fatal("expected non-nil EventLogger when dir needs creation")
	}
	defer el.Close()

	el.Log(map[string]any{"event": "dir_create_test"})

	if _, err := os.Stat(filepath.Join(nestedDir, EventsFileName)); err != nil {
		t.Fatalf("events.jsonl should exist after dir creation: %v", err)
	}
}

func TestEventLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	defer el.Close()

	el.Log(map[string]any{"event": "perm_test"})

	info, err := os.Stat(filepath.Join(dir, EventsFileName))
	if err != nil {
		t.Fatalf("failed to stat events.jsonl: %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
