package mcp

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/collatzmap/internal/collatz"
	"github.com/nvandessel/collatzmap/internal/config"
	"github.com/nvandessel/collatzmap/internal/constants"
	"github.com/nvandessel/collatzmap/internal/export"
	"github.com/nvandessel/collatzmap/internal/pathutil"
	"github.com/nvandessel/collatzmap/internal/ratelimit"
	"github.com/nvandessel/collatzmap/internal/scan"
	"github.com/nvandessel/collatzmap/internal/store"
)

// registerTools registers all collatzmap MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "collatz_walk",
		Description: "Walk the Collatz trajectory of one odd start and classify it as known or discovered",
	}, s.handleCollatzWalk)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "collatz_scan",
		Description: "Scan all odd starts up to a bound and report run-pair percentages at power-of-two checkpoints",
	}, s.handleCollatzScan)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "collatz_history",
		Description: "List archived scans, or show one archived scan with its checkpoints",
	}, s.handleCollatzHistory)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "collatz_export",
		Description: "Export the checkpoints of an archived scan as an Apache Arrow IPC file",
	}, s.handleCollatzExport)
}

// handleCollatzWalk implements the collatz_walk tool.
func (s *Server) handleCollatzWalk(ctx context.Context, req *sdk.CallToolRequest, args CollatzWalkInput) (_ *sdk.CallToolResult, _ CollatzWalkOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("collatz_walk", start, retErr, sanitizeToolParams(map[string]interface{}{
			"start": args.Start, "prime": args.Prime,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "collatz_walk"); err != nil {
		return nil, CollatzWalkOutput{}, err
	}

	n, ok := new(big.Int).SetString(strings.TrimSpace(args.Start), 10)
	if !ok {
		return nil, CollatzWalkOutput{}, fmt.Errorf("start %q is not a decimal integer", args.Start)
	}

	memo := collatz.NewMemo()
	if args.Prime {
		if !n.IsUint64() || n.Uint64() > constants.MCPMaxPrimeStart {
			return nil, CollatzWalkOutput{}, fmt.Errorf("prime is limited to starts up to %d", constants.MCPMaxPrimeStart)
		}
		primed, err := scan.Prime(ctx, n.Uint64())
		if err != nil {
			return nil, CollatzWalkOutput{}, fmt.Errorf("failed to prime memo: %w", err)
		}
		memo = primed
	}

	class, visited, err := collatz.Walk(n, memo)
	if err != nil {
		return nil, CollatzWalkOutput{}, err
	}

	values := visited.Values()
	out := CollatzWalkOutput{
		Start:          n.String(),
		Classification: string(class),
		Visited:        make([]string, len(values)),
		VisitedCount:   len(values),
		MemoSize:       memo.Len(),
		Primed:         args.Prime,
	}
	for i, v := range values {
		out.Visited[i] = v.String()
	}

	s.logger.Debug("walked start", "start", out.Start, "class", out.Classification, "visited", out.VisitedCount)
	return nil, out, nil
}

// handleCollatzScan implements the collatz_scan tool.
func (s *Server) handleCollatzScan(ctx context.Context, req *sdk.CallToolRequest, args CollatzScanInput) (_ *sdk.CallToolResult, _ CollatzScanOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("collatz_scan", start, retErr, sanitizeToolParams(map[string]interface{}{
			"max_value": args.MaxValue, "archive": args.Archive,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "collatz_scan"); err != nil {
		return nil, CollatzScanOutput{}, err
	}

	maxValue, err := config.ParseMaxValue(args.MaxValue)
	if err != nil {
		return nil, CollatzScanOutput{}, err
	}
	if maxValue > constants.MCPMaxScanValue {
		return nil, CollatzScanOutput{}, fmt.Errorf("max_value %d exceeds the MCP limit of %d; use the scan command for larger ranges", maxValue, constants.MCPMaxScanValue)
	}

	sum, err := scan.Run(ctx, scan.Options{MaxValue: maxValue, Logger: s.logger}, nil)
	if err != nil {
		return nil, CollatzScanOutput{}, fmt.Errorf("scan failed: %w", err)
	}

	out := CollatzScanOutput{Scan: toScanDetail(0, sum)}
	if args.Archive {
		id, err := s.reports.RecordScan(ctx, sum)
		if err != nil {
			return nil, CollatzScanOutput{}, fmt.Errorf("failed to archive scan: %w", err)
		}
		out.ScanID = id
		out.Scan.ID = id
	}

	return nil, out, nil
}

// handleCollatzHistory implements the collatz_history tool.
func (s *Server) handleCollatzHistory(ctx context.Context, req *sdk.CallToolRequest, args CollatzHistoryInput) (_ *sdk.CallToolResult, _ CollatzHistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("collatz_history", start, retErr, sanitizeToolParams(map[string]interface{}{
			"id": args.ID, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "collatz_history"); err != nil {
		return nil, CollatzHistoryOutput{}, err
	}

	if args.ID != 0 {
		rec, err := s.reports.GetScan(ctx, args.ID)
		if err != nil {
			return nil, CollatzHistoryOutput{}, err
		}
		detail := toScanDetail(rec.ID, &rec.Summary)
		return nil, CollatzHistoryOutput{Scan: &detail, Count: 1}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = constants.MCPDefaultHistoryLimit
	}
	records, err := s.reports.ListScans(ctx, limit)
	if err != nil {
		return nil, CollatzHistoryOutput{}, err
	}

	items := make([]ScanItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toScanItem(rec))
	}
	return nil, CollatzHistoryOutput{Scans: items, Count: len(items)}, nil
}

// handleCollatzExport implements the collatz_export tool.
func (s *Server) handleCollatzExport(ctx context.Context, req *sdk.CallToolRequest, args CollatzExportInput) (_ *sdk.CallToolResult, _ CollatzExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("collatz_export", start, retErr, sanitizeToolParams(map[string]interface{}{
			"id": args.ID, "output_path": args.OutputPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "collatz_export"); err != nil {
		return nil, CollatzExportOutput{}, err
	}

	if args.ID <= 0 {
		return nil, CollatzExportOutput{}, fmt.Errorf("id is required")
	}

	outputPath := args.OutputPath
	if outputPath == "" {
		// Default path -- controlled by us, no validation needed
		outputPath = filepath.Join(s.appDir, "exports", fmt.Sprintf("scan-%d.arrow", args.ID))
	} else {
		allowedDirs, err := pathutil.DefaultAllowedExportDirs(s.root)
		if err != nil {
			return nil, CollatzExportOutput{}, fmt.Errorf("failed to determine allowed export dirs: %w", err)
		}
		if err := pathutil.ValidatePath(outputPath, allowedDirs); err != nil {
			return nil, CollatzExportOutput{}, fmt.Errorf("export path rejected: %w", err)
		}
	}

	rec, err := s.reports.GetScan(ctx, args.ID)
	if err != nil {
		return nil, CollatzExportOutput{}, err
	}

	if err := export.WriteFile(outputPath, &rec.Summary); err != nil {
		return nil, CollatzExportOutput{}, fmt.Errorf("export failed: %w", err)
	}

	var sizeBytes int64
	if info, err := os.Stat(outputPath); err == nil {
		sizeBytes = info.Size()
	}

	return nil, CollatzExportOutput{
		Path:        outputPath,
		Checkpoints: len(rec.Checkpoints),
		SizeBytes:   sizeBytes,
		Message:     fmt.Sprintf("Exported %d checkpoints of scan %d to %s", len(rec.Checkpoints), args.ID, outputPath),
	}, nil
}

func toScanItem(rec store.ScanRecord) ScanItem {
	return ScanItem{
		ID:            rec.ID,
		StartedAt:     rec.StartedAt.UTC().Format(time.RFC3339),
		MaxValue:      rec.MaxValue,
		Processed:     rec.Processed,
		Pairs:         rec.Pairs,
		DiscoveredPct: rec.DiscoveredPct,
		KnownPct:      rec.KnownPct,
		Interrupted:   rec.Interrupted,
	}
}

func toScanDetail(id int64, sum *scan.Summary) ScanDetail {
	d := ScanDetail{
		ID:                id,
		StartedAt:         sum.StartedAt.UTC().Format(time.RFC3339),
		MaxValue:          sum.MaxValue,
		Processed:         sum.Processed,
		Pairs:             sum.Pairs,
		DiscoveredPct:     sum.DiscoveredPct,
		KnownPct:          sum.KnownPct,
		Interrupted:       sum.Interrupted,
		Total:             sum.Total,
		LastStart:         sum.LastStart,
		TotalDiscovered:   bigString(sum.TotalDiscovered),
		TotalKnown:        bigString(sum.TotalKnown),
		MemoSize:          sum.MemoSize,
		DurationMs:        sum.Duration.Milliseconds(),
		PendingCheckpoint: sum.PendingCheckpoint,
		Checkpoints:       make([]CheckpointItem, 0, len(sum.Checkpoints)),
	}
	for _, c := range sum.Checkpoints {
		d.Checkpoints = append(d.Checkpoints, CheckpointItem{
			Power:           c.Power,
			Boundary:        c.Boundary,
			EmittedAt:       c.EmittedAt,
			Deferred:        c.Deferred,
			Processed:       c.Processed,
			DiscoveredPct:   c.DiscoveredPct,
			KnownPct:        c.KnownPct,
			TotalDiscovered: bigString(c.TotalDiscovered),
			TotalKnown:      bigString(c.TotalKnown),
		})
	}
	return d
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
