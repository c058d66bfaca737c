// Package mcp provides an MCP (Model Context Protocol) server exposing
// Collatz walks, bounded scans and the report archive as tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/collatzmap/internal/config"
	"github.com/nvandessel/collatzmap/internal/ratelimit"
	"github.com/nvandessel/collatzmap/internal/store"
)

// Server wraps the MCP SDK server and provides collatzmap tools.
type Server struct {
	server       *sdk.Server
	reports      *store.SQLiteReportStore
	cfg          *config.CollatzConfig
	appDir       string
	root         string
	logger       *slog.Logger
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	closeOnce    sync.Once
	closeErr     error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "collatzmap")
	Version string // Server version
	Root    string // Working directory; exports may also be written below it

	// Collatz is the loaded configuration. Nil loads it from the default locations.
	Collatz *config.CollatzConfig

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with collatzmap tools.
func NewServer(cfg *Config) (*Server, error) {
	collatzCfg := cfg.Collatz
	if collatzCfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		collatzCfg = loaded
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	appDir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	dbPath, err := collatzCfg.ReportDBPath()
	if err != nil {
		return nil, err
	}
	reports, err := store.NewSQLiteReportStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open report archive: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		reports:      reports,
		cfg:          collatzCfg,
		appDir:       appDir,
		root:         cfg.Root,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(appDir),
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := watchSignals(func() {
		s.logger.Info("shutting down mcp server")
		cancel()
	})
	defer stop()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close closes the server and releases resources. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.reports.Close()
		if err := s.auditLogger.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// watchSignals calls onSignal on the first shutdown signal. The returned stop
// function unregisters the handler and waits for the watcher to exit.
func watchSignals(onSignal func()) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-sigChan:
			onSignal()
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
			<-exited
		})
	}
}
