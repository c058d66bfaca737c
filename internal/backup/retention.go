package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	backupPrefix = "collatzmap-backup-"
	backupSuffix = ".json.gz"
)

// BackupInfo describes one backup file in a backup directory.
type BackupInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ScanCount int       `json:"scan_count"`
}

// Retention limits how many backups are kept. A zero field disables that
// limit. A backup is kept while any enabled limit still covers it: it is
// among the MaxCount newest, younger than MaxAge, or inside the newest run
// of backups whose sizes add up to MaxTotalBytes. The newest backup always
// fits the size limit.
type Retention struct {
	MaxCount      int
	MaxAge        time.Duration
	MaxTotalBytes int64
}

// ParseRetention builds a Retention from the backup.* config values.
func ParseRetention(maxCount int, maxAge, maxTotalSize string) (Retention, error) {
	if maxCount < 0 {
		return Retention{}, fmt.Errorf("invalid backup count %d", maxCount)
	}
	r := Retention{MaxCount: maxCount}
	if maxAge != "" {
		d, err := ParseDuration(maxAge)
		if err != nil {
			return Retention{}, err
		}
		r.MaxAge = d
	}
	if maxTotalSize != "" {
		n, err := ParseSize(maxTotalSize)
		if err != nil {
			return Retention{}, err
		}
		r.MaxTotalBytes = n
	}
	return r, nil
}

// Limited reports whether any limit is enabled.
func (r Retention) Limited() bool {
	return r.MaxCount > 0 || r.MaxAge > 0 || r.MaxTotalBytes > 0
}

// Prune returns the backups r drops, given backups sorted newest first.
func (r Retention) Prune(backups []BackupInfo, now time.Time) []BackupInfo {
	if !r.Limited() {
		return nil
	}

	var (
		prune  []BackupInfo
		total  int64
		sizeOK = r.MaxTotalBytes > 0
	)
	for i, b := range backups {
		if sizeOK {
			if i > 0 && total+b.Size > r.MaxTotalBytes {
				sizeOK = false
			} else {
				total += b.Size
			}
		}
		byCount := i < r.MaxCount
		byAge := r.MaxAge > 0 && now.Sub(b.CreatedAt) < r.MaxAge
		if !byCount && !byAge && !sizeOK {
			prune = append(prune, b)
		}
	}
	return prune
}

func (r Retention) String() string {
	var parts []string
	if r.MaxCount > 0 {
		parts = append(parts, fmt.Sprintf("%d newest", r.MaxCount))
	}
	if r.MaxAge > 0 {
		parts = append(parts, "younger than "+r.MaxAge.String())
	}
	if r.MaxTotalBytes > 0 {
		parts = append(parts, "within "+humanize.IBytes(uint64(r.MaxTotalBytes)))
	}
	if len(parts) == 0 {
		return "keep all"
	}
	return "keep " + strings.Join(parts, " or ")
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix)
}

// ListBackups returns the backup files in dir, newest first. File names embed
// their creation time, so name order is age order. A missing directory has no
// backups.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		bi := BackupInfo{
			Path:      filepath.Join(dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		// header time wins over mtime, which copies do not preserve
		if header, err := ReadHeader(bi.Path); err == nil {
			bi.CreatedAt = header.CreatedAt
			bi.ScanCount = header.ScanCount
		}
		backups = append(backups, bi)
	}

	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// ApplyRetention removes the backups in dir that r drops as of now and
// returns their paths.
func ApplyRetention(dir string, r Retention, now time.Time) (deleted []string, err error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	for _, b := range r.Prune(backups, now) {
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

var durationUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDuration accepts Go durations ("720h") plus whole days and weeks
// ("30d", "2w").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	for suffix, unit := range durationUnits {
		if num, ok := strings.CutSuffix(s, suffix); ok {
			n, err := strconv.ParseUint(num, 10, 32)
			if err != nil {
				return 0, fmt.Errorf("invalid duration: %q", s)
			}
			return time.Duration(n) * unit, nil
		}
	}
	return 0, fmt.Errorf("invalid duration %q (use h, d or w)", s)
}

// ParseSize parses a byte size such as "100MB" or "1GiB". Decimal units are
// powers of 1000 and binary units powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(n), nil
}
