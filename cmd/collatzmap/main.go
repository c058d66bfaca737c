package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/nvandessel/collatzmap/internal/config"
	"github.com/nvandessel/collatzmap/internal/store"
	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "collatzmap",
		Short: "Map which Collatz trajectories reach known territory",
		Long: `collatzmap walks the Collatz trajectory of every odd start in ascending order.

Each start is classified as known (its trajectory reached a value seen by an
earlier start) or discovered (it reached a power of two first). Consecutive
runs of each class are paired up and their cumulative lengths are reported
as percentages at every power-of-two boundary.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Working directory; MCP exports may be written below it")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newScanCmd(),
		newWalkCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newDeleteCmd(),
		newExportCmd(),
		newImportCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadConfig loads the configuration and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.CollatzConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// openReports opens the report archive configured in cfg.
func openReports(cfg *config.CollatzConfig) (*store.SQLiteReportStore, error) {
	dbPath, err := cfg.ReportDBPath()
	if err != nil {
		return nil, err
	}
	reports, err := store.NewSQLiteReportStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open report archive: %w", err)
	}
	return reports, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
