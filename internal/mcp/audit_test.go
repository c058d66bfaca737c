package mcp

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_NilSafety(t *testing.T) {
	t.Run("nil logger Log is no-op", func(t *testing.T) {
		var logger *AuditLogger
		// Should not panic
		logger.Log(AuditEntry{Tool: "test"})
	})

	t.Run("nil logger Close is no-op", func(t *testing.T) {
		var logger *AuditLogger
		if err := logger.Close(); err != nil {
			t.Errorf("Close() on nil logger returned error: %v", err)
		}
	})
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	now := time.Now()
	logger.Log(AuditEntry{
		Timestamp:  now,
		Tool:       "collatz_scan",
		DurationMs: 42,
		Status:     "success",
		Params:     map[string]string{"max_value": "1025"},
	})

	data, err := os.ReadFile(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}

	var entry AuditEntry
	if err := json.Unmarshal(data[:len(data)-1], &entry); err != nil {
		t.Fatalf("parsing audit entry: %v", err)
	}
	if entry.Tool != "collatz_scan" {
		t.Errorf("tool = %q, want collatz_scan", entry.Tool)
	}
	if entry.DurationMs != 42 {
		t.Errorf("duration_ms = %d, want 42", entry.DurationMs)
	}
	if entry.Status != "success" {
		t.Errorf("status = %q, want success", entry.Status)
	}
	if entry.Params["max_value"] != "1025" {
		t.Errorf("params[max_value] = %q, want 1025", entry.Params["max_value"])
	}
}

func TestAuditLogger_FilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	info, err := os.Stat(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	defer logger.Close()

	const goroutines = 10
	const entriesPerGoroutine = 5

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < entriesPerGoroutine; i++ {
				logger.Log(AuditEntry{
					Timestamp:  time.Now(),
					Tool:       "collatz_walk",
					DurationMs: int64(id*100 + i),
					Status:     "success",
				})
			}
		}(g)
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != goroutines*entriesPerGoroutine {
		t.Errorf("line count = %d, want %d", len(lines), goroutines*entriesPerGoroutine)
	}
	for i, line := range lines {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i+1, err)
		}
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Should not panic
	logger.Log(AuditEntry{Tool: "late"})

	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAuditLogger_BadPath(t *testing.T) {
	// A file where the directory should be
	dir := t.TempDir()
	blockPath := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blockPath, []byte("file"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	logger := NewAuditLogger(blockPath)
	if logger != nil {
		logger.Close()
		t.Error("expected nil logger when the directory cannot be created")
	}
}

func TestSanitizeToolParams(t *testing.T) {
	t.Run("safe values are included", func(t *testing.T) {
		result := sanitizeToolParams(map[string]interface{}{
			"max_value": "2^20",
			"archive":   true,
			"limit":     5,
		})
		if result["max_value"] != "2^20" {
			t.Errorf("max_value = %q, want 2^20", result["max_value"])
		}
		if result["archive"] != "true" {
			t.Errorf("archive = %q, want true", result["archive"])
		}
		if result["limit"] != "5" {
			t.Errorf("limit = %q, want 5", result["limit"])
		}
		if result["_param_count"] != "3" {
			t.Errorf("_param_count = %q, want 3", result["_param_count"])
		}
	})

	t.Run("paths are presence-only", func(t *testing.T) {
		result := sanitizeToolParams(map[string]interface{}{
			"output_path": "/home/user/secret/scan.arrow",
		})
		if result["output_path"] != "(set)" {
			t.Errorf("output_path = %q, want (set)", result["output_path"])
		}
	})

	t.Run("unknown params are dropped", func(t *testing.T) {
		result := sanitizeToolParams(map[string]interface{}{"token": "abc"})
		if _, ok := result["token"]; ok {
			t.Error("unknown param should not be logged")
		}
		if result["_param_count"] != "1" {
			t.Errorf("_param_count = %q, want 1", result["_param_count"])
		}
	})

	t.Run("nil params", func(t *testing.T) {
		if result := sanitizeToolParams(nil); result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})
}

func TestAuditTool(t *testing.T) {
	dir := t.TempDir()
	s := &Server{auditLogger: NewAuditLogger(dir)}
	defer s.auditLogger.Close()

	s.auditTool("collatz_export", time.Now(), errors.New("export path rejected"), map[string]string{"id": "3"})

	data, err := os.ReadFile(filepath.Join(dir, AuditFileName))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	var entry AuditEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("parsing audit entry: %v", err)
	}
	if entry.Status != "error" || entry.Error != "export path rejected" || entry.Params["id"] != "3" {
		t.Errorf("entry = %+v", entry)
	}
}
