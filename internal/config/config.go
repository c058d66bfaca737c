// Package config provides unified configuration loading for collatzmap.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/collatzmap/internal/constants"
	"gopkg.in/yaml.v3"
)

// CollatzConfig contains all collatzmap configuration settings.
type CollatzConfig struct {
	// Scan contains settings for the scanned range.
	Scan ScanConfig `json:"scan" yaml:"scan"`

	// Display contains settings for terminal rendering.
	Display DisplayConfig `json:"display" yaml:"display"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Report contains settings for the scan report archive and exports.
	Report ReportConfig `json:"report" yaml:"report"`

	// Backup contains retention settings for archive backups.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// ScanConfig configures the scanned range.
type ScanConfig struct {
	// MaxValue is the inclusive upper bound. Odd starts 1, 3, ..., MaxValue are scanned.
	MaxValue uint64 `json:"max_value" yaml:"max_value"`
}

// DisplayConfig configures the progress bar.
type DisplayConfig struct {
	// BarWidth is the number of cells in the progress bar.
	BarWidth int `json:"bar_width" yaml:"bar_width"`

	// Color enables ANSI colors on checkpoint lines.
	Color bool `json:"color" yaml:"color"`
}

// LoggingConfig configures collatzmap's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to events.jsonl in the app directory.
	// "trace" additionally logs every heartbeat.
	Level string `json:"level" yaml:"level"`
}

// ReportConfig configures where finished scans are archived.
type ReportConfig struct {
	// DBPath is the SQLite report archive. Empty means ~/.collatzmap/reports.db.
	// Supports ${VAR} syntax for env vars.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// Archive enables recording every finished scan in the archive.
	Archive bool `json:"archive" yaml:"archive"`
}

// BackupConfig configures which archive backups are kept after a new one is written.
// A backup survives if any configured limit keeps it.
type BackupConfig struct {
	// MaxCount keeps the N newest backups. Zero disables the limit.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps backups younger than this, e.g. "30d", "2w" or "720h".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxTotalSize keeps the newest backups up to this total, e.g. "100MB".
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// Default returns a CollatzConfig with sensible defaults.
func Default() *CollatzConfig {
	return &CollatzConfig{
		Scan: ScanConfig{
			MaxValue: constants.DefaultMaxValue,
		},
		Display: DisplayConfig{
			BarWidth: constants.DefaultBarWidth,
			Color:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Report: ReportConfig{
			Archive: false,
		},
		Backup: BackupConfig{
			MaxCount: constants.DefaultBackupCount,
		},
	}
}

// Dir returns the per-user application directory (~/.collatzmap).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.AppDirName), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.collatzmap/config.yaml -> environment variables
func Load() (*CollatzConfig, error) {
	config := Default()

	// Try to load from default config file
	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*CollatzConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Report.DBPath = expandEnvVars(config.Report.DBPath)

	return config, nil
}

// Save writes the configuration to ~/.collatzmap/config.yaml.
func Save(config *CollatzConfig) error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return SaveToFile(config, configPath)
}

// SaveToFile writes the configuration as YAML to path, creating its directory.
func SaveToFile(config *CollatzConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ReportDBPath returns the configured archive path, or the default one.
func (c *CollatzConfig) ReportDBPath() (string, error) {
	if c.Report.DBPath != "" {
		return c.Report.DBPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ReportDBName), nil
}

// Validate checks that the configuration is valid.
func (c *CollatzConfig) Validate() error {
	if c.Scan.MaxValue == 0 || c.Scan.MaxValue == math.MaxUint64 {
		return fmt.Errorf("max_value must be between 1 and %d, got %d", uint64(math.MaxUint64-1), c.Scan.MaxValue)
	}

	if c.Display.BarWidth <= 0 {
		return fmt.Errorf("bar_width must be positive, got %d", c.Display.BarWidth)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup max_count must not be negative, got %d", c.Backup.MaxCount)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *CollatzConfig) {
	if v := os.Getenv("COLLATZMAP_MAX_VALUE"); v != "" {
		if n, err := ParseMaxValue(v); err == nil {
			config.Scan.MaxValue = n
		}
	}

	if v := os.Getenv("COLLATZMAP_BAR_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Display.BarWidth = n
		}
	}

	if v := os.Getenv("COLLATZMAP_COLOR"); v != "" {
		config.Display.Color = v == "true" || v == "1"
	}

	// NO_COLOR disables color regardless of its value
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		config.Display.Color = false
	}

	if v := os.Getenv("COLLATZMAP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("COLLATZMAP_DB_PATH"); v != "" {
		config.Report.DBPath = v
	}

	if v := os.Getenv("COLLATZMAP_ARCHIVE"); v != "" {
		config.Report.Archive = v == "true" || v == "1"
	}
}

// ParseMaxValue parses an upper bound. Besides plain integers it accepts
// powers written as "2^27" and "2^27+5", and underscores as digit separators.
func ParseMaxValue(s string) (uint64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return 0, fmt.Errorf("empty max value")
	}

	base, offset, hasOffset := strings.Cut(s, "+")
	var value uint64
	if b, exp, ok := strings.Cut(base, "^"); ok {
		bv, err := strconv.ParseUint(b, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid base %q: %w", b, err)
		}
		ev, err := strconv.ParseUint(exp, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid exponent %q: %w", exp, err)
		}
		switch {
		case bv == 0 && ev > 0:
			value = 0
		case bv <= 1:
			value = 1
		case ev >= 64:
			// any base of 2 or more overflows by then
			return 0, fmt.Errorf("max value %s overflows uint64", s)
		default:
			value = 1
			for i := uint64(0); i < ev; i++ {
				if value > math.MaxUint64/bv {
					return 0, fmt.Errorf("max value %s overflows uint64", s)
				}
				value *= bv
			}
		}
	} else {
		v, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid max value %q: %w", s, err)
		}
		value = v
	}

	if hasOffset {
		off, err := strconv.ParseUint(offset, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q: %w", offset, err)
		}
		if value > math.MaxUint64-off {
			return 0, fmt.Errorf("max value %s overflows uint64", s)
		}
		value += off
	}

	return value, nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
