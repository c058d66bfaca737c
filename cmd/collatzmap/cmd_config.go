package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nvandessel/collatzmap/internal/backup"
	"github.com/nvandessel/collatzmap/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage collatzmap configuration",
		Long: `View and modify collatzmap configuration settings.

Configuration is stored in ~/.collatzmap/config.yaml.

Examples:
  collatzmap config list                        # Show all settings
  collatzmap config get scan.max_value          # Get a specific setting
  collatzmap config set scan.max_value 2^30+5   # Set a setting
  collatzmap config set report.archive true
  collatzmap config set backup.max_age 30d`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			fmt.Fprintln(out, "Configuration (~/.collatzmap/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Scan Settings:")
			fmt.Fprintf(out, "  scan.max_value:     %d\n", cfg.Scan.MaxValue)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Display Settings:")
			fmt.Fprintf(out, "  display.bar_width:  %d\n", cfg.Display.BarWidth)
			fmt.Fprintf(out, "  display.color:      %v\n", cfg.Display.Color)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging Settings:")
			fmt.Fprintf(out, "  logging.level:      %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Report Settings:")
			fmt.Fprintf(out, "  report.db_path:     %s\n", valueOrDefault(cfg.Report.DBPath, "(default)"))
			fmt.Fprintf(out, "  report.archive:     %v\n", cfg.Report.Archive)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Backup Settings:")
			fmt.Fprintf(out, "  backup.max_count:      %d\n", cfg.Backup.MaxCount)
			fmt.Fprintf(out, "  backup.max_age:        %s\n", valueOrDefault(cfg.Backup.MaxAge, "(none)"))
			fmt.Fprintf(out, "  backup.max_total_size: %s\n", valueOrDefault(cfg.Backup.MaxTotalSize, "(none)"))

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			key := args[0]
			value := args[1]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}

			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(out, "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.CollatzConfig, key string) (interface{}, bool) {
	switch key {
	case "scan.max_value":
		return cfg.Scan.MaxValue, true
	case "display.bar_width":
		return cfg.Display.BarWidth, true
	case "display.color":
		return cfg.Display.Color, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "report.db_path":
		return cfg.Report.DBPath, true
	case "report.archive":
		return cfg.Report.Archive, true
	case "backup.max_count":
		return cfg.Backup.MaxCount, true
	case "backup.max_age":
		return cfg.Backup.MaxAge, true
	case "backup.max_total_size":
		return cfg.Backup.MaxTotalSize, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.CollatzConfig, key, value string) error {
	switch key {
	case "scan.max_value":
		n, err := config.ParseMaxValue(value)
		if err != nil {
			return err
		}
		cfg.Scan.MaxValue = n
	case "display.bar_width":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid bar width: %s", value)
		}
		cfg.Display.BarWidth = n
	case "display.color":
		cfg.Display.Color = value == "true" || value == "1"
	case "logging.level":
		cfg.Logging.Level = value
	case "report.db_path":
		cfg.Report.DBPath = value
	case "report.archive":
		cfg.Report.Archive = value == "true" || value == "1"
	case "backup.max_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid backup count: %s", value)
		}
		cfg.Backup.MaxCount = n
	case "backup.max_age":
		if value != "" {
			if _, err := backup.ParseDuration(value); err != nil {
				return err
			}
		}
		cfg.Backup.MaxAge = value
	case "backup.max_total_size":
		if value != "" {
			if _, err := backup.ParseSize(value); err != nil {
				return err
			}
		}
		cfg.Backup.MaxTotalSize = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
