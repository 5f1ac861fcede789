package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/interfaces"
	"github.com/ternarybob/deepwork/internal/review"
	"github.com/ternarybob/deepwork/internal/server"
)

var (
	servePath          string
	serveNoQualityGate bool
	serveTransport     string
	servePort          int
	serveRunner        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deepwork MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runServe(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePath, "path", ".", "Project root directory")
	serveCmd.Flags().BoolVar(&serveNoQualityGate, "no-quality-gate", false, "Disable quality reviews entirely")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "Transport: stdio or sse")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "Port for the SSE transport")
	serveCmd.Flags().StringVar(&serveRunner, "external-runner", "", "External reviewer subprocess (claude); absent selects self-review mode")
}

func runServe(cmd *cobra.Command) error {
	projectRoot, err := filepath.Abs(servePath)
	if err != nil {
		return fmt.Errorf("invalid --path: %w", err)
	}
	info, err := os.Stat(projectRoot)
	if err != nil {
		return fmt.Errorf("project root does not exist: %s", projectRoot)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root is not a directory: %s", projectRoot)
	}

	config, err := common.LoadConfig(filepath.Join(projectRoot, "deepwork.toml"))
	if err != nil {
		return err
	}

	// Flags beat the config file only when actually passed.
	if cmd.Flags().Changed("transport") {
		config.Server.Transport = serveTransport
	}
	if cmd.Flags().Changed("port") {
		config.Server.Port = servePort
	}
	if err := config.Validate(); err != nil {
		return err
	}

	logger := common.InitLogger(config)

	var reviewer interfaces.Reviewer
	switch serveRunner {
	case "":
		// Self-review mode.
	case "claude":
		reviewer = review.NewSubprocessReviewer(config.Reviewer.Command, logger)
	default:
		return fmt.Errorf("unsupported external runner '%s' (supported: claude)", serveRunner)
	}

	srv, err := server.New(server.Options{
		ProjectRoot:        projectRoot,
		Config:             config,
		Reviewer:           reviewer,
		DisableQualityGate: serveNoQualityGate,
	}, logger)
	if err != nil {
		return err
	}

	return srv.Serve()
}
