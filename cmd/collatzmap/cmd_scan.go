package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nvandessel/collatzmap/internal/config"
	"github.com/nvandessel/collatzmap/internal/export"
	"github.com/nvandessel/collatzmap/internal/logging"
	"github.com/nvandessel/collatzmap/internal/progress"
	"github.com/nvandessel/collatzmap/internal/scan"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan all odd starts up to a bound",
		Long: `Walk every odd start 1, 3, 5, ... up to the configured bound, printing
the cumulative discovered/known split at each power-of-two boundary.

Ctrl+C stops the scan at the next heartbeat; the partial summary is still
printed and archived.

Examples:
  collatzmap scan                      # Use scan.max_value from config
  collatzmap scan --max 2^20+5         # Override the bound
  collatzmap scan --archive --arrow out/checkpoints.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			arrowPath, err := applyScanFlags(cmd, cfg)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			var events *logging.EventLogger
			if appDir, err := config.Dir(); err == nil {
				events = logging.NewEventLogger(appDir, cfg.Logging.Level)
			}
			defer events.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var obs scan.Observer
			var renderer *progress.Renderer
			if !jsonOut {
				renderer = progress.NewRenderer(out, cfg.Display.BarWidth, cfg.Display.Color)
				renderer.Start(scan.TotalStarts(cfg.Scan.MaxValue))
				obs = renderer
			}

			sum, err := scan.Run(ctx, scan.Options{
				MaxValue: cfg.Scan.MaxValue,
				Logger:   logger,
				Events:   events,
			}, obs)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if renderer != nil {
				if sum.Interrupted {
					renderer.PrintAbove(fmt.Sprintf("Interrupted after start %d.", sum.LastStart))
					fmt.Fprintln(out)
				} else {
					renderer.Finish()
				}
			}

			result := map[string]interface{}{"scan": sum}

			if cfg.Report.Archive {
				reports, err := openReports(cfg)
				if err != nil {
					return err
				}
				id, err := reports.RecordScan(context.Background(), sum)
				reports.Close()
				if err != nil {
					return fmt.Errorf("failed to archive scan: %w", err)
				}
				result["scan_id"] = id
				logger.Info("scan archived", "id", id)
			}

			if arrowPath != "" {
				if err := export.WriteFile(arrowPath, sum); err != nil {
					return err
				}
				result["arrow_path"] = arrowPath
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}

			printSummary(out, sum)
			if id, ok := result["scan_id"]; ok {
				fmt.Fprintf(out, "Archived as scan #%d\n", id)
			}
			if arrowPath != "" {
				fmt.Fprintf(out, "Checkpoints written to %s\n", arrowPath)
			}
			return nil
		},
	}

	cmd.Flags().String("max", "", "Inclusive upper bound, e.g. 1000000 or 2^27+5 (overrides scan.max_value)")
	cmd.Flags().Int("width", 0, "Progress bar width (overrides display.bar_width)")
	cmd.Flags().Bool("no-color", false, "Disable colored checkpoint lines")
	cmd.Flags().Bool("archive", false, "Record the scan in the report archive (overrides report.archive)")
	cmd.Flags().String("arrow", "", "Also write the checkpoints to this Arrow IPC file")

	return cmd
}

// applyScanFlags applies scan flag overrides to cfg and returns the Arrow
// output path, if any.
func applyScanFlags(cmd *cobra.Command, cfg *config.CollatzConfig) (string, error) {
	if raw, _ := cmd.Flags().GetString("max"); raw != "" {
		maxValue, err := config.ParseMaxValue(raw)
		if err != nil {
			return "", err
		}
		cfg.Scan.MaxValue = maxValue
	}
	if width, _ := cmd.Flags().GetInt("width"); width != 0 {
		cfg.Display.BarWidth = width
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.Display.Color = false
	}
	if archive, _ := cmd.Flags().GetBool("archive"); archive {
		cfg.Report.Archive = true
	}
	arrowPath, _ := cmd.Flags().GetString("arrow")
	return arrowPath, nil
}

// printSummary writes a human-readable scan summary.
func printSummary(w io.Writer, sum *scan.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scanned %d of %d odd starts up to %d in %v\n",
		sum.Processed, sum.Total, sum.MaxValue, sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Run pairs:    %d\n", sum.Pairs)
	fmt.Fprintf(w, "  Discovered:   %.8f%% (total run length %s)\n", sum.DiscoveredPct*100, sum.TotalDiscovered)
	fmt.Fprintf(w, "  Known:        %.8f%% (total run length %s)\n", sum.KnownPct*100, sum.TotalKnown)
	fmt.Fprintf(w, "  Memo size:    %d\n", sum.MemoSize)
	fmt.Fprintf(w, "  Checkpoints:  %d\n", len(sum.Checkpoints))
	if sum.PendingCheckpoint != nil {
		fmt.Fprintf(w, "  Pending:      2^%d (range ended before it fired)\n", *sum.PendingCheckpoint)
	}
}
