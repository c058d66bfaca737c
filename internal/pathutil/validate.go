// Package pathutil validates file paths supplied by callers outside the
// process (MCP clients) before collatzmap writes to them.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/collatzmap/internal/constants"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/.collatzmap/config.yaml" becomes ".../.collatzmap/config.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath checks that path resolves inside one of allowedDirs.
// Symlinks on the existing part of the path are resolved first, so a link
// inside an allowed directory cannot point the write elsewhere.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// The file itself may not exist yet; resolve its directory.
	resolvedDir, err := resolveExisting(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, dir := range allowedDirs {
		allowedAbs, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		allowed, err := resolveExisting(allowedAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolved, allowed) {
			return nil
		}
	}

	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(absPath))
}

// resolveExisting resolves symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar"
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// DefaultAllowedExportDirs returns the directories exports may be written to:
// ~/.collatzmap/exports/ and, if set, root.
func DefaultAllowedExportDirs(root string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(homeDir, constants.AppDirName, "exports")}
	if root != "" {
		dirs = append(dirs, root)
	}
	return dirs, nil
}

// DefaultAllowedBackupDirs returns the directories backups may be read from
// or written to: ~/.collatzmap/backups/ and, if set, root.
func DefaultAllowedBackupDirs(root string) ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(homeDir, constants.AppDirName, constants.BackupDirName)}
	if root != "" {
		dirs = append(dirs, root)
	}
	return dirs, nil
}
