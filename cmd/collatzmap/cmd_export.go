package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/collatzmap/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export archived scans",
		Long: `Export archived scans.

With --format arrow (the default) the checkpoints of one scan are written as
an Apache Arrow IPC file. With --format jsonl every archived scan is written
as one JSON object per line, suitable for 'collatzmap import'.

Examples:
  collatzmap export 3 --output scan3.arrow
  collatzmap export --format jsonl --output scans.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
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
			ctx := context.Background()

			result := map[string]interface{}{"format": format}

			switch format {
			case "arrow":
				if len(args) != 1 {
					return fmt.Errorf("arrow export needs a scan id")
				}
				id, err := parseScanID(args[0])
				if err != nil {
					return err
				}
				rec, err := reports.GetScan(ctx, id)
				if err != nil {
					return err
				}
				if output == "" {
					output = fmt.Sprintf("scan-%d.arrow", id)
				}
				if err := export.WriteFile(output, &rec.Summary); err != nil {
					return err
				}
				result["id"] = id
				result["checkpoints"] = len(rec.Checkpoints)

			case "jsonl":
				if len(args) != 0 {
					return fmt.Errorf("jsonl export writes the whole archive and takes no id")
				}
				if output == "" {
					output = "scans.jsonl"
				}
				if err := os.MkdirAll(filepath.Dir(output), 0700); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				n, err := reports.ExportJSONL(ctx, f)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}
				result["scans"] = n

			default:
				return fmt.Errorf("unknown format %q (valid: arrow, jsonl)", format)
			}

			result["path"] = output
			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "Exported %s to %s\n", format, output)
			return nil
		},
	}

	cmd.Flags().String("format", "arrow", "Export format: arrow or jsonl")
	cmd.Flags().StringP("output", "o", "", "Output file (default scan-<id>.arrow or scans.jsonl)")

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import scans from a JSONL export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
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

			n, err := reports.ImportJSONL(context.Background(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status":   "imported",
					"imported": n,
				})
			}
			fmt.Fprintf(out, "Imported %d scans\n", n)
			return nil
		},
	}
}
