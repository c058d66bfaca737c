package mcp

// CollatzWalkInput defines the input for the collatz_walk tool.
type CollatzWalkInput struct {
	Start string `json:"start" jsonschema:"Odd positive start value in decimal; may exceed 64 bits"`
	Prime bool   `json:"prime,omitempty" jsonschema:"Walk against the memo a scan would hold on reaching start instead of the seed memo {1}"`
}

// CollatzWalkOutput defines the output for the collatz_walk tool.
type CollatzWalkOutput struct {
	Start          string   `json:"start" jsonschema:"The walked start value"`
	Classification string   `json:"classification" jsonschema:"known if the trajectory reached a memoized value, discovered if it reached a power of two first"`
	Visited        []string `json:"visited" jsonschema:"Odd values seen on the trajectory in ascending order, including the start"`
	VisitedCount   int      `json:"visited_count" jsonschema:"Number of visited odd values"`
	MemoSize       int      `json:"memo_size" jsonschema:"Size of the memo the start was walked against"`
	Primed         bool     `json:"primed" jsonschema:"Whether the memo was primed with all smaller odd starts"`
}

// CollatzScanInput defines the input for the collatz_scan tool.
type CollatzScanInput struct {
	MaxValue string `json:"max_value" jsonschema:"Inclusive upper bound such as 1025 or 2^20+5; capped for MCP calls"`
	Archive  bool   `json:"archive,omitempty" jsonschema:"Record the finished scan in the report archive"`
}

// CollatzScanOutput defines the output for the collatz_scan tool.
type CollatzScanOutput struct {
	ScanID int64      `json:"scan_id,omitempty" jsonschema:"Archive ID when the scan was archived"`
	Scan   ScanDetail `json:"scan" jsonschema:"Scan summary and checkpoints"`
}

// CollatzHistoryInput defines the input for the collatz_history tool.
type CollatzHistoryInput struct {
	ID    int64 `json:"id,omitempty" jsonschema:"Archive ID of a single scan to show with its checkpoints"`
	Limit int   `json:"limit,omitempty" jsonschema:"Maximum number of scans to list, newest first (default 20)"`
}

// CollatzHistoryOutput defines the output for the collatz_history tool.
type CollatzHistoryOutput struct {
	Scans []ScanItem  `json:"scans,omitempty" jsonschema:"Archived scans when listing"`
	Scan  *ScanDetail `json:"scan,omitempty" jsonschema:"The requested scan when an ID was given"`
	Count int         `json:"count" jsonschema:"Number of scans returned"`
}

// CollatzExportInput defines the input for the collatz_export tool.
type CollatzExportInput struct {
	ID         int64  `json:"id" jsonschema:"Archive ID of the scan to export"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"Arrow file to write; must be under ~/.collatzmap/exports or the server root"`
}

// CollatzExportOutput defines the output for the collatz_export tool.
type CollatzExportOutput struct {
	Path        string `json:"path" jsonschema:"Written Arrow IPC file"`
	Checkpoints int    `json:"checkpoints" jsonschema:"Number of checkpoint rows written"`
	SizeBytes   int64  `json:"size_bytes" jsonschema:"Size of the written file"`
	Message     string `json:"message" jsonschema:"Human-readable result message"`
}

// ScanItem provides a list view of an archived scan.
type ScanItem struct {
	ID            int64   `json:"id"`
	StartedAt     string  `json:"started_at"`
	MaxValue      uint64  `json:"max_value"`
	Processed     uint64  `json:"processed"`
	Pairs         uint64  `json:"pairs"`
	DiscoveredPct float64 `json:"discovered_pct"`
	KnownPct      float64 `json:"known_pct"`
	Interrupted   bool    `json:"interrupted"`
}

// ScanDetail is a scan summary with its checkpoints. Run-length totals are
// decimal strings since they can outgrow 64 bits.
type ScanDetail struct {
	ID                int64            `json:"id,omitempty"`
	StartedAt         string           `json:"started_at"`
	MaxValue          uint64           `json:"max_value"`
	Processed         uint64           `json:"processed"`
	Pairs             uint64           `json:"pairs"`
	DiscoveredPct     float64          `json:"discovered_pct"`
	KnownPct          float64          `json:"known_pct"`
	Interrupted       bool             `json:"interrupted"`
	Total             uint64           `json:"total"`
	LastStart         uint64           `json:"last_start"`
	TotalDiscovered   string           `json:"total_discovered"`
	TotalKnown        string           `json:"total_known"`
	MemoSize          int              `json:"memo_size"`
	DurationMs        int64            `json:"duration_ms"`
	PendingCheckpoint *uint            `json:"pending_checkpoint,omitempty"`
	Checkpoints       []CheckpointItem `json:"checkpoints"`
}

// CheckpointItem is one power-of-two checkpoint.
type CheckpointItem struct {
	Power           uint    `json:"power"`
	Boundary        uint64  `json:"boundary"`
	EmittedAt       uint64  `json:"emitted_at"`
	Deferred        bool    `json:"deferred"`
	Processed       uint64  `json:"processed"`
	DiscoveredPct   float64 `json:"discovered_pct"`
	KnownPct        float64 `json:"known_pct"`
	TotalDiscovered string  `json:"total_discovered"`
	TotalKnown      string  `json:"total_known"`
}
