package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ExportJSONL writes every archived scan, oldest first and with its
// checkpoints, as one JSON object per line.
func (s *SQLiteReportStore) ExportJSONL(ctx context.Context, w io.Writer) (int, error) {
	records, err := s.ListScans(ctx, 0)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	n := 0
	for i := len(records) - 1; i >= 0; i-- {
		rec, err := s.GetScan(ctx, records[i].ID)
		if err != nil {
			return n, err
		}
		if err := enc.Encode(rec); err != nil {
			return n, fmt.Errorf("failed to encode scan %d: %w", rec.ID, err)
		}
		n++
	}
	return n, nil
}

// ImportJSONL archives every scan found in a JSONL file written by
// ExportJSONL. IDs in the file are ignored; imported scans get new IDs.
// A missing file imports nothing.
func (s *SQLiteReportStore) ImportJSONL(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // No file is fine
		}
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Checkpoint lists make lines longer than the default token size
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024) // 1MB max line length

	lineNum, imported := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec ScanRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return imported, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		if _, err := s.RecordScan(ctx, &rec.Summary); err != nil {
			return imported, fmt.Errorf("failed to import line %d: %w", lineNum, err)
		}
		imported++
	}

	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("scanner error: %w", err)
	}
	return imported, nil
}
