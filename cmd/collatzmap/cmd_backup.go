package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/collatzmap/internal/backup"
	"github.com/nvandessel/collatzmap/internal/config"
	"github.com/nvandessel/collatzmap/internal/pathutil"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the report archive to a compressed file",
		Long: `Back up every archived scan, with its checkpoints, to a compressed file.

Default location: ~/.collatzmap/backups/collatzmap-backup-YYYYMMDD-HHMMSS.json.gz
Old backups are pruned according to the backup.* settings (default: keep 10).

Examples:
  collatzmap backup                               # Backup to default location
  collatzmap backup --output ./archive.json.gz    # Backup to a file under --root
  collatzmap backup list                          # List backups
  collatzmap backup verify <file>                 # Verify backup integrity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			keep, err := backupRetention(&cfg.Backup)
			if err != nil {
				return fmt.Errorf("invalid backup settings: %w", err)
			}

			if outputPath == "" {
				dir, err := backup.DefaultBackupDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GenerateBackupPath(dir)
			} else if err := validateBackupPath(cmd, outputPath); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			reports, err := openReports(cfg)
			if err != nil {
				return err
			}
			defer reports.Close()

			snap, err := backup.Backup(cmd.Context(), reports, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var pruned []string
			if keep.Limited() {
				pruned, err = backup.ApplyRetention(filepath.Dir(outputPath), keep, time.Now())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"path":       outputPath,
					"scan_count": len(snap.Scans),
					"version":    snap.Version,
					"pruned":     len(pruned),
				})
			}

			fmt.Fprintf(out, "Backup created: %d scans\n", len(snap.Scans))
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(out, "  Pruned %d old backups (%s)\n", len(pruned), keep)
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in ~/.collatzmap/backups/)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in ~/.collatzmap/backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			dir, err := backup.DefaultBackupDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return err
			}

			if jsonOut {
				if backups == nil {
					backups = []backup.BackupInfo{}
				}
				return json.NewEncoder(out).Encode(backups)
			}

			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups found. Run 'collatzmap backup' to create one.")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintf(out, "%s  %5d scans  %9s  %s\n",
					b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.ScanCount,
					humanize.IBytes(uint64(b.Size)), filepath.Base(b.Path))
			}
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify the checksum of a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if err := backup.VerifyChecksum(args[0]); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			header, err := backup.ReadHeader(args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"path":       args[0],
					"valid":      true,
					"scan_count": header.ScanCount,
					"created_at": header.CreatedAt,
				})
			}
			fmt.Fprintf(out, "%s: OK (%d scans, %s)\n", filepath.Base(args[0]), header.ScanCount, header.Checksum)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore archived scans from a backup file",
		Long: `Restore archived scans from a backup file.

Modes:
  merge   - Skip scans already in the archive (default)
  replace - Clear the archive first, then restore

Examples:
  collatzmap restore ~/.collatzmap/backups/collatzmap-backup-20260206-120000.json.gz
  collatzmap restore backup.json.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeName, _ := cmd.Flags().GetString("mode")
			out := cmd.OutOrStdout()

			mode, err := backup.ParseRestoreMode(modeName)
			if err != nil {
				return err
			}
			if err := validateBackupPath(cmd, args[0]); err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reports, err := openReports(cfg)
			if err != nil {
				return err
			}
			defer reports.Close()

			result, err := backup.Restore(cmd.Context(), reports, args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "Restored %d scans (%d skipped, %d removed)\n",
				result.ScansRestored, result.ScansSkipped, result.ScansRemoved)
			return nil
		},
	}

	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")

	return cmd
}

// validateBackupPath checks that path lies in the backup directory or under --root.
func validateBackupPath(cmd *cobra.Command, path string) error {
	root, _ := cmd.Flags().GetString("root")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}
	allowedDirs, err := pathutil.DefaultAllowedBackupDirs(absRoot)
	if err != nil {
		return fmt.Errorf("failed to determine allowed backup dirs: %w", err)
	}
	return pathutil.ValidatePath(path, allowedDirs)
}

// backupRetention reads the retention limits from the backup config.
func backupRetention(cfg *config.BackupConfig) (backup.Retention, error) {
	return backup.ParseRetention(cfg.MaxCount, cfg.MaxAge, cfg.MaxTotalSize)
}
