// Package server assembles the deepwork MCP server: four tools over the
// job loader, session store, output validator, and quality gate.
package server

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/interfaces"
	"github.com/ternarybob/deepwork/internal/jobs"
	"github.com/ternarybob/deepwork/internal/review"
	"github.com/ternarybob/deepwork/internal/state"
)

// Options configure server assembly.
type Options struct {
	ProjectRoot string
	Config      *common.Config
	// Reviewer selects external mode when non-nil; nil means self-review.
	Reviewer interfaces.Reviewer
	// DisableQualityGate skips reviews entirely (--no-quality-gate).
	DisableQualityGate bool
}

// Server coordinates the deepwork components behind the MCP tool surface.
type Server struct {
	projectRoot string
	config      *common.Config
	loader      *jobs.Loader
	store       *state.Store
	gate        *review.Gate // nil when the quality gate is disabled
	mcp         *mcpserver.MCPServer
	logger      arbor.ILogger
}

// New builds the server and registers the four workflow tools.
func New(opts Options, logger arbor.ILogger) (*Server, error) {
	if err := common.EnsureTmpDir(opts.ProjectRoot); err != nil {
		return nil, err
	}

	s := &Server{
		projectRoot: opts.ProjectRoot,
		config:      opts.Config,
		loader:      jobs.NewLoader(opts.ProjectRoot, logger),
		store:       state.NewStore(opts.ProjectRoot, logger),
		logger:      logger,
	}

	if !opts.DisableQualityGate {
		reviewerConfig := opts.Config.Reviewer
		if opts.Reviewer == nil {
			// Self-review payloads always list paths instead of inlining.
			reviewerConfig.MaxInlineFiles = 0
		}
		s.gate = review.NewGate(opts.ProjectRoot, opts.Reviewer, reviewerConfig, logger)
	}

	s.mcp = mcpserver.NewMCPServer(
		"deepwork",
		common.GetVersion(),
		mcpserver.WithToolCapabilities(true),
	)

	s.mcp.AddTool(createGetWorkflowsTool(), s.handleGetWorkflows)
	s.mcp.AddTool(createStartWorkflowTool(), s.handleStartWorkflow)
	s.mcp.AddTool(createFinishedStepTool(), s.handleFinishedStep)
	s.mcp.AddTool(createAbortWorkflowTool(), s.handleAbortWorkflow)

	return s, nil
}

// Serve blocks on the configured transport.
func (s *Server) Serve() error {
	switch s.config.Server.Transport {
	case "stdio":
		s.logger.Info().Str("transport", "stdio").Msg("Starting deepwork MCP server")
		return mcpserver.ServeStdio(s.mcp)
	case "sse":
		addr := fmt.Sprintf(":%d", s.config.Server.Port)
		s.logger.Info().
			Str("transport", "sse").
			Int("port", s.config.Server.Port).
			Msg("Starting deepwork MCP server")
		sse := mcpserver.NewSSEServer(s.mcp)
		return sse.Start(addr)
	default:
		return fmt.Errorf("unsupported transport '%s'", s.config.Server.Transport)
	}
}

// Store exposes the session store, used by the jobs CLI subcommands.
func (s *Server) Store() *state.Store {
	return s.store
}
