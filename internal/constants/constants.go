// Package constants provides named constants used throughout the collatzmap codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Scan range constants
const (
	// DefaultMaxValue is the demonstration-sized inclusive upper bound of a scan.
	// Production runs raise it (for example to 1_000_000_000) through config.
	DefaultMaxValue uint64 = 1<<27 + 5

	// SeedStart is the first odd start. It is memoized before the scan begins
	// and never contributes to run accounting.
	SeedStart uint64 = 1
)

// Checkpoint constants
const (
	// FirstCheckpointPower is the smallest k whose boundary 2^k - 1 is reported.
	FirstCheckpointPower = 2

	// DeferredCheckpointThreshold is the boundary value at or above which a
	// checkpoint waits until a Discovered run turns into a Known run.
	DeferredCheckpointThreshold = 17
)

// Progress reporting constants
const (
	// HeartbeatInterval sets the redraw cadence: a heartbeat fires at every
	// start n with n % HeartbeatInterval == 1.
	HeartbeatInterval uint64 = 16384

	// DefaultBarWidth is the number of cells in the progress bar.
	DefaultBarWidth = 40

	// PercentPrecision is the number of decimals printed for checkpoint percentages.
	PercentPrecision = 8
)

// Storage constants
const (
	// AppDirName is the per-user directory holding config and the report archive.
	AppDirName = ".collatzmap"

	// BackupDirName is the backup directory inside AppDirName.
	BackupDirName = "backups"

	// DefaultBackupCount is the number of archive backups kept by default.
	DefaultBackupCount = 10

	// ConfigFileName is the YAML config file inside AppDirName.
	ConfigFileName = "config.yaml"

	// ReportDBName is the SQLite report archive inside AppDirName.
	ReportDBName = "reports.db"
)

// MCP tool limits
const (
	// MCPMaxScanValue caps the range a single collatz_scan call may cover.
	MCPMaxScanValue uint64 = 1 << 22

	// MCPMaxPrimeStart caps the start for which collatz_walk rebuilds the
	// scan memo before walking.
	MCPMaxPrimeStart uint64 = 1 << 20

	// MCPDefaultHistoryLimit is the number of scans collatz_history lists by default.
	MCPDefaultHistoryLimit = 20
)
