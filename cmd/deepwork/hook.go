package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/deepwork/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook <name>",
	Short: "Run a named hook and exit with its return code",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(hooks.Run(args[0]))
	},
}
