package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fulfiller",
	Short: "AI order fulfillment orchestrator",
	Long: `Fulfiller turns client service orders into delivered work.

Each order is assigned to a capacity-limited AI agent of the type its
category requires, planned into an ordered list of tasks, executed task by
task against the completion provider with bounded retries, and packaged
into a delivery. Clients are notified when an order completes or fails.

Typical flow:
  fulfiller init
  fulfiller agents load fleet.yaml
  fulfiller submit --client acme --category WEBSITE --requirements req.json
  fulfiller serve`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(outboxCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
