package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/collatzmap/internal/pathutil"
	"github.com/nvandessel/collatzmap/internal/scan"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrScanNotFound is returned when a scan ID has no archived report.
var ErrScanNotFound = errors.New("scan not found")

// ScanRecord is an archived scan summary.
type ScanRecord struct {
	ID int64 `json:"id"`
	scan.Summary
}

// SQLiteReportStore archives scan summaries and their checkpoints in SQLite.
// Only results are stored; the memoization set of a scan is never persisted.
type SQLiteReportStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteReportStore opens (creating if needed) the archive at dbPath.
func NewSQLiteReportStore(dbPath string) (*SQLiteReportStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", pathutil.RedactPath(filepath.Dir(dbPath)), err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteReportStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteReportStore) Path() string {
	return s.dbPath
}

// RecordScan archives a summary and its checkpoints and returns the new scan ID.
func (s *SQLiteReportStore) RecordScan(ctx context.Context, sum *scan.Summary) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertScan(ctx, tx, sum)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan: %w", err)
	}
	return id, nil
}

// ReplaceAll clears the archive and records sums in one transaction, so a
// failure leaves the archive as it was. It returns the number of scans removed.
func (s *SQLiteReportStore) ReplaceAll(ctx context.Context, sums []*scan.Summary) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM scans`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear scans: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted rows: %w", err)
	}

	for i, sum := range sums {
		if _, err := insertScan(ctx, tx, sum); err != nil {
			return 0, fmt.Errorf("scan %d of %d: %w", i+1, len(sums), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit replacement: %w", err)
	}
	return int(removed), nil
}

func insertScan(ctx context.Context, tx *sql.Tx, sum *scan.Summary) (int64, error) {
	if sum == nil {
		return 0, fmt.Errorf("summary is required")
	}

	ints, err := toInt64s(sum.MaxValue, sum.Total, sum.Processed, sum.LastStart, sum.Pairs)
	if err != nil {
		return 0, fmt.Errorf("scan summary: %w", err)
	}

	var pending sql.NullInt64
	if sum.PendingCheckpoint != nil {
		pending = sql.NullInt64{Int64: int64(*sum.PendingCheckpoint), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans (
			started_at, duration_ns, max_value, total, processed, last_start, pairs,
			total_discovered, total_known, discovered_pct, known_pct, memo_size,
			pending_checkpoint, interrupted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		int64(sum.Duration),
		ints[0], ints[1], ints[2], ints[3], ints[4],
		bigString(sum.TotalDiscovered),
		bigString(sum.TotalKnown),
		sum.DiscoveredPct,
		sum.KnownPct,
		sum.MemoSize,
		pending,
		sum.Interrupted,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan id: %w", err)
	}

	for _, c := range sum.Checkpoints {
		cints, err := toInt64s(c.Boundary, c.EmittedAt, c.Processed)
		if err != nil {
			return 0, fmt.Errorf("checkpoint 2^%d: %w", c.Power, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO checkpoints (
				scan_id, power, boundary, emitted_at, deferred, processed,
				discovered_pct, known_pct, total_discovered, total_known
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, int64(c.Power), cints[0], cints[1], c.Deferred, cints[2],
			c.DiscoveredPct, c.KnownPct,
			bigString(c.TotalDiscovered), bigString(c.TotalKnown),
		); err != nil {
			return 0, fmt.Errorf("failed to insert checkpoint 2^%d: %w", c.Power, err)
		}
	}
	return id, nil
}

const scanColumns = `id, started_at, duration_ns, max_value, total, processed, last_start, pairs,
	total_discovered, total_known, discovered_pct, known_pct, memo_size,
	pending_checkpoint, interrupted`

// ListScans returns archived scans, newest first, without their checkpoints.
// A limit of zero or less returns all scans.
func (s *SQLiteReportStore) ListScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + scanColumns + ` FROM scans ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}
	return records, nil
}

// GetScan returns an archived scan with its checkpoints ordered by power.
func (s *SQLiteReportStore) GetScan(ctx context.Context, id int64) (*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %d: %w", id, ErrScanNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT power, boundary, emitted_at, deferred, processed,
		       discovered_pct, known_pct, total_discovered, total_known
		FROM checkpoints WHERE scan_id = ? ORDER BY power`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                       scan.Checkpoint
			power                   int64
			boundary, emitted, proc int64
			totalDisc, totalKnown   string
		)
		if err := rows.Scan(&power, &boundary, &emitted, &c.Deferred, &proc,
			&c.DiscoveredPct, &c.KnownPct, &totalDisc, &totalKnown); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		c.Power = uint(power)
		c.Boundary = uint64(boundary)
		c.EmittedAt = uint64(emitted)
		c.Processed = uint64(proc)
		if c.TotalDiscovered, err = parseBig(totalDisc); err != nil {
			return nil, err
		}
		if c.TotalKnown, err = parseBig(totalKnown); err != nil {
			return nil, err
		}
		rec.Checkpoints = append(rec.Checkpoints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}

	return rec, nil
}

// DeleteScan removes an archived scan and its checkpoints.
func (s *SQLiteReportStore) DeleteScan(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("scan %d: %w", id, ErrScanNotFound)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteReportStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var (
		rec                                   ScanRecord
		startedAt                             string
		durationNs                            int64
		maxValue, total, processed, lastStart int64
		pairs                                 int64
		totalDisc, totalKnown                 string
		pending                               sql.NullInt64
	)
	err := row.Scan(&rec.ID, &startedAt, &durationNs, &maxValue, &total, &processed, &lastStart, &pairs,
		&totalDisc, &totalKnown, &rec.DiscoveredPct, &rec.KnownPct, &rec.MemoSize,
		&pending, &rec.Interrupted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	rec.Duration = time.Duration(durationNs)
	rec.MaxValue = uint64(maxValue)
	rec.Total = uint64(total)
	rec.Processed = uint64(processed)
	rec.LastStart = uint64(lastStart)
	rec.Pairs = uint64(pairs)
	if rec.TotalDiscovered, err = parseBig(totalDisc); err != nil {
		return nil, err
	}
	if rec.TotalKnown, err = parseBig(totalKnown); err != nil {
		return nil, err
	}
	if pending.Valid {
		p := uint(pending.Int64)
		rec.PendingCheckpoint = &p
	}
	return &rec, nil
}

// toInt64s converts unsigned counters for storage in INTEGER columns.
func toInt64s(vals ...uint64) ([]int64, error) {
	out := make([]int64, len(vals))
	for i, v := range vals {
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("value %d exceeds archive integer range", v)
		}
		out[i] = int64(v)
	}
	return out, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q in archive", s)
	}
	return v, nil
}
