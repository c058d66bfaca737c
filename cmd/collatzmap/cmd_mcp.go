package main

import (
	"fmt"
	"path/filepath"

	"github.com/nvandessel/collatzmap/internal/logging"
	"github.com/nvandessel/collatzmap/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
collatz_walk, collatz_scan, collatz_history and collatz_export tools.

Logs go to stderr so they never corrupt the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve root: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "collatzmap",
				Version: version,
				Root:    absRoot,
				Collatz: cfg,
				Logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}
}
