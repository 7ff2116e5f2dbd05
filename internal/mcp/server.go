// Package mcp provides an MCP (Model Context Protocol) server for co2twin.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/co2twin/internal/logging"
	"github.com/nvandessel/co2twin/internal/ratelimit"
	"github.com/nvandessel/co2twin/internal/simulation"
	"github.com/nvandessel/co2twin/internal/workspace"
)

// Server wraps the MCP SDK server and exposes simulations as tools.
type Server struct {
	server       *sdk.Server
	ws           *workspace.Workspace
	sim          *simulation.Simulator
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "co2twin")
	Version string // Server version

	// Workspace resolves cities and graph profiles. The caller owns it.
	Workspace *workspace.Workspace

	// Simulator runs the tools' simulations. When nil one is built from
	// the workspace configuration.
	Simulator *simulation.Simulator
}

// NewServer creates a new MCP server with co2twin tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Workspace == nil {
		return nil, errors.New("mcp server requires a workspace")
	}

	logger := cfg.Workspace.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	sim := cfg.Simulator
	if sim == nil {
		var err error
		sim, err = cfg.Workspace.Simulator(context.Background())
		if err != nil {
			return nil, err
		}
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
		ws:           cfg.Workspace,
		sim:          sim,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(logger),
		logger:       logger.With("component", "mcp"),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := s.registerResources(); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	return s, nil
}

// Simulator returns the simulator the tools run against. Publishing a new
// graph on it affects subsequent tool calls.
func (s *Server) Simulator() *simulation.Simulator {
	return s.sim
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer stopSignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			s.logger.Info("signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
