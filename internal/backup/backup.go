// Package backup provides backup and restore of the scan report archive.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/collatzmap/internal/constants"
	"github.com/nvandessel/collatzmap/internal/scan"
	"github.com/nvandessel/collatzmap/internal/store"
)

// Snapshot is the payload of a backup file: every archived scan with its
// checkpoints, oldest first.
type Snapshot struct {
	Version   int                `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	Scans     []store.ScanRecord `json:"scans"`
}

// DefaultBackupDir returns the default backup directory (~/.collatzmap/backups/).
func DefaultBackupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.AppDirName, constants.BackupDirName), nil
}

// Backup writes every archived scan to a compressed backup file at outputPath.
func Backup(ctx context.Context, reports *store.SQLiteReportStore, outputPath string) (*Snapshot, error) {
	records, err := reports.ListScans(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	snap := &Snapshot{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Scans:     make([]store.ScanRecord, 0, len(records)),
	}
	// ListScans is newest first
	for i := len(records) - 1; i >= 0; i-- {
		rec, err := reports.GetScan(ctx, records[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load scan %d: %w", records[i].ID, err)
		}
		snap.Scans = append(snap.Scans, *rec)
	}

	if err := Write(outputPath, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// RestoreMode controls how restore handles existing data.
type RestoreMode string

const (
	// RestoreMerge skips scans already in the archive (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace clears the archive before restoring.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode validates a mode name. Empty means merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("invalid restore mode %q (valid: merge, replace)", s)
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	ScansRestored int `json:"scans_restored"`
	ScansSkipped  int `json:"scans_skipped"`
	ScansRemoved  int `json:"scans_removed"`
}

// Restore archives the scans of a backup file. Restored scans get new IDs.
// Replace mode swaps the whole archive in one transaction. In merge mode a
// scan is skipped when one with the same start time and bound is already
// archived.
func Restore(ctx context.Context, reports *store.SQLiteReportStore, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	snap, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	if mode == RestoreReplace {
		sums := make([]*scan.Summary, len(snap.Scans))
		for i := range snap.Scans {
			sums[i] = &snap.Scans[i].Summary
		}
		removed, err := reports.ReplaceAll(ctx, sums)
		if err != nil {
			return nil, fmt.Errorf("failed to replace archive: %w", err)
		}
		return &RestoreResult{ScansRestored: len(sums), ScansRemoved: removed}, nil
	}

	existing, err := reports.ListScans(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	result := &RestoreResult{}
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[scanKey(rec)] = true
	}

	for _, rec := range snap.Scans {
		key := scanKey(rec)
		if seen[key] {
			result.ScansSkipped++
			continue
		}
		if _, err := reports.RecordScan(ctx, &rec.Summary); err != nil {
			return nil, fmt.Errorf("failed to restore scan %d: %w", rec.ID, err)
		}
		seen[key] = true
		result.ScansRestored++
	}

	return result, nil
}

func scanKey(rec store.ScanRecord) string {
	return fmt.Sprintf("%s/%d", rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.MaxValue)
}

// GenerateBackupPath creates a timestamped backup filename in the given directory.
func GenerateBackupPath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", backupPrefix, ts, backupSuffix))
}
