package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nvandessel/collatzmap/internal/progress"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			reports, err := openReports(cfg)
			if err != nil {
				return err
			}
			defer reports.Close()

			records, err := reports.ListScans(context.Background(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"scans": records,
					"count": len(records),
				})
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "No archived scans. Run 'collatzmap scan --archive' to record one.")
				return nil
			}

			fmt.Fprintf(out, "%-6s %-20s %14s %14s %16s %16s\n", "ID", "STARTED", "MAX", "PAIRS", "DISCOVERED", "KNOWN")
			for _, rec := range records {
				marker := ""
				if rec.Interrupted {
					marker = " (interrupted)"
				}
				fmt.Fprintf(out, "%-6d %-20s %14d %14d %15.8f%% %15.8f%%%s\n",
					rec.ID, rec.StartedAt.Local().Format(time.DateTime), rec.MaxValue, rec.Pairs,
					rec.DiscoveredPct*100, rec.KnownPct*100, marker)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of scans to list (0 for all)")

	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived scan with its checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noColor, _ := cmd.Flags().GetBool("no-color")
			out := cmd.OutOrStdout()

			id, err := parseScanID(args[0])
			if err != nil {
				return err
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

			rec, err := reports.GetScan(context.Background(), id)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(rec)
			}

			fmt.Fprintf(out, "Scan #%d, started %s\n", rec.ID, rec.StartedAt.Local().Format(time.DateTime))
			for _, c := range rec.Checkpoints {
				fmt.Fprintln(out, progress.CheckpointLine(c, cfg.Display.Color && !noColor))
			}
			printSummary(out, &rec.Summary)
			if rec.Interrupted {
				fmt.Fprintf(out, "  Interrupted after start %d\n", rec.LastStart)
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-color", false, "Disable colored checkpoint lines")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			id, err := parseScanID(args[0])
			if err != nil {
				return err
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

			if err := reports.DeleteScan(context.Background(), id); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "deleted",
					"id":     id,
				})
			}
			fmt.Fprintf(out, "Deleted scan #%d\n", id)
			return nil
		},
	}
}

func parseScanID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid scan id %q", s)
	}
	return id, nil
}
