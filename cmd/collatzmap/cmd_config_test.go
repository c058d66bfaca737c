package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nvandessel/collatzmap/internal/config"
)

func TestConfigSetGet(t *testing.T) {
	isolateHome(t, t.TempDir())

	if _, err := runCmd(t, newConfigCmd(), "config", "set", "scan.max_value", "2^10+5"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	out, err := runCmd(t, newConfigCmd(), "config", "get", "scan.max_value")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if strings.TrimSpace(out) != "scan.max_value = 1029" {
		t.Errorf("config get = %q", out)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.MaxValue != 1029 {
		t.Errorf("saved max_value = %d, want 1029", cfg.Scan.MaxValue)
	}
}

func TestConfigSet_Errors(t *testing.T) {
	isolateHome(t, t.TempDir())

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown key", "llm.provider", "x", "unknown configuration key"},
		{"bad max", "scan.max_value", "lots", "invalid max value"},
		{"zero max", "scan.max_value", "0", "invalid value"},
		{"bad width", "display.bar_width", "wide", "invalid bar width"},
		{"bad level", "logging.level", "verbose", "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, newConfigCmd(), "config", "set", tt.key, tt.value)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigList(t *testing.T) {
	isolateHome(t, t.TempDir())

	out, err := runCmd(t, newConfigCmd(), "config", "list")
	if err != nil {
		t.Fatalf("config list failed: %v", err)
	}
	for _, want := range []string{"scan.max_value:     134217733", "display.bar_width:  40", "report.db_path:     (default)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config list missing %q:\n%s", want, out)
		}
	}

	out, err = runCmd(t, newConfigCmd(), "--json", "config", "list")
	if err != nil {
		t.Fatalf("config list --json failed: %v", err)
	}
	var cfg config.CollatzConfig
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if cfg.Display.BarWidth != 40 {
		t.Errorf("bar_width = %d, want 40", cfg.Display.BarWidth)
	}
}

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	for _, key := range []string{"scan.max_value", "display.bar_width", "display.color", "logging.level", "report.db_path", "report.archive"} {
		if _, ok := getConfigValue(cfg, key); !ok {
			t.Errorf("getConfigValue(%q) not found", key)
		}
	}
	if _, ok := getConfigValue(cfg, "nope"); ok {
		t.Error("getConfigValue(nope) should not be found")
	}
}
