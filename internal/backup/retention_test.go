package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRetention_Prune(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	backups := []BackupInfo{
		{Path: "/b/5", CreatedAt: now.Add(-1 * time.Hour), Size: 400},
		{Path: "/b/4", CreatedAt: now.Add(-12 * time.Hour), Size: 400},
		{Path: "/b/3", CreatedAt: now.Add(-30 * time.Hour), Size: 400},
		{Path: "/b/2", CreatedAt: now.Add(-72 * time.Hour), Size: 10},
		{Path: "/b/1", CreatedAt: now.Add(-100 * time.Hour), Size: 10},
	}

	tests := []struct {
		name      string
		retention Retention
		want      []string
	}{
		{"no limits", Retention{}, nil},
		{"count", Retention{MaxCount: 3}, []string{"/b/2", "/b/1"}},
		{"count above total", Retention{MaxCount: 10}, nil},
		{"age", Retention{MaxAge: 24 * time.Hour}, []string{"/b/3", "/b/2", "/b/1"}},
		// size stops at the first backup that does not fit, even if later ones would
		{"size", Retention{MaxTotalBytes: 1000}, []string{"/b/3", "/b/2", "/b/1"}},
		{"size keeps newest", Retention{MaxTotalBytes: 10}, []string{"/b/4", "/b/3", "/b/2", "/b/1"}},
		{"any limit keeps", Retention{MaxCount: 1, MaxAge: 24 * time.Hour}, []string{"/b/3", "/b/2", "/b/1"}},
		{"union of count and age", Retention{MaxCount: 4, MaxAge: 2 * time.Hour}, []string{"/b/1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, b := range tt.retention.Prune(backups, now) {
				got = append(got, b.Path)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Prune() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRetention(t *testing.T) {
	r, err := ParseRetention(3, "2w", "100MB")
	if err != nil {
		t.Fatalf("ParseRetention() error = %v", err)
	}
	want := Retention{MaxCount: 3, MaxAge: 14 * 24 * time.Hour, MaxTotalBytes: 100 * 1000 * 1000}
	if r != want {
		t.Errorf("ParseRetention() = %+v, want %+v", r, want)
	}
	if got := r.String(); got != "keep 3 newest or younger than 336h0m0s or within 95 MiB" {
		t.Errorf("String() = %q", got)
	}

	r, err = ParseRetention(0, "", "")
	if err != nil || r.Limited() {
		t.Errorf("ParseRetention(no limits) = %+v, %v, want unlimited", r, err)
	}
	if r.String() != "keep all" {
		t.Errorf("String() = %q, want keep all", r.String())
	}

	for _, bad := range []struct {
		count     int
		age, size string
	}{
		{-1, "", ""},
		{0, "soon", ""},
		{0, "", "big"},
	} {
		if _, err := ParseRetention(bad.count, bad.age, bad.size); err == nil {
			t.Errorf("ParseRetention(%d, %q, %q) should fail", bad.count, bad.age, bad.size)
		}
	}
}

func writeBackups(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := Write(filepath.Join(dir, name), testSnapshot()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListBackups(t *testing.T) {
	dir := t.TempDir()
	writeBackups(t, dir,
		"collatzmap-backup-20260201-120000.json.gz",
		"collatzmap-backup-20260203-120000.json.gz",
		"collatzmap-backup-20260202-120000.json.gz",
	)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0600); err != nil {
		t.Fatal(err)
	}

	backups, err := ListBackups(dir)
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("ListBackups() found %d, want 3", len(backups))
	}
	if filepath.Base(backups[0].Path) != "collatzmap-backup-20260203-120000.json.gz" {
		t.Errorf("first backup = %s, want newest", backups[0].Path)
	}
	if backups[0].ScanCount != 1 || backups[0].Size == 0 {
		t.Errorf("backup info = %+v", backups[0])
	}
	if !backups[0].CreatedAt.Equal(testSnapshot().CreatedAt) {
		t.Errorf("CreatedAt = %v, want header timestamp", backups[0].CreatedAt)
	}
}

func TestListBackups_MissingDir(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), "none"))
	if err != nil || backups != nil {
		t.Errorf("ListBackups(missing) = %v, %v", backups, err)
	}
}

func TestApplyRetention(t *testing.T) {
	dir := t.TempDir()
	writeBackups(t, dir,
		"collatzmap-backup-20260201-120000.json.gz",
		"collatzmap-backup-20260202-120000.json.gz",
		"collatzmap-backup-20260203-120000.json.gz",
	)

	deleted, err := ApplyRetention(dir, Retention{MaxCount: 1}, time.Now())
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("ApplyRetention() deleted %d, want 2", len(deleted))
	}

	left, _ := ListBackups(dir)
	if len(left) != 1 || filepath.Base(left[0].Path) != "collatzmap-backup-20260203-120000.json.gz" {
		t.Errorf("remaining backups = %v", left)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{" 30d ", 30 * 24 * time.Hour, false},
		{"", 0, true},
		{"d", 0, true},
		{"-3d", 0, true},
		{"5y", 0, true},
		{"xd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100B", 100, false},
		{"500KB", 500 * 1000, false},
		{"100MB", 100 * 1000 * 1000, false},
		{" 1GiB ", 1 << 30, false},
		{"4096", 4096, false},
		{"", 0, true},
		{"0MB", 0, true},
		{"xMB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseSize(%q) = %d, %v", tt.in, got, err)
			}
		})
	}
}
