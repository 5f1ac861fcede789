package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/deepwork/internal/common"
)

var rootCmd = &cobra.Command{
	Use:           "deepwork",
	Short:         "Workflow orchestration server for AI coding agents over MCP",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       common.LoadVersionFromFile(),
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
