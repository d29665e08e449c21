package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "erpbusd",
	Short: "erpbusd - ERP event bus and aggregation daemon",
	Long: `erpbusd runs the inter-module event bus and the read-side data
aggregator for the ERP backend.

It relays module events over Redis Pub/Sub (falling back to in-process
delivery when Redis is unavailable), keeps a short-lived cache of the
last event per type, and serves dashboard and assistant-context
aggregates over HTTP.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"erpbusd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}
