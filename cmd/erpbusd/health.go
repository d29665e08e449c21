package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grupoatlas/erpbus/pkg/config"
	"github.com/grupoatlas/erpbus/pkg/eventbus"
	"github.com/grupoatlas/erpbus/pkg/log"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check broker connectivity and exit",
	Long: `Connect to the configured Redis broker once, print the bus health
report as JSON, and exit non-zero unless the bus is healthy.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: os.Stderr})

		bus := eventbus.New(cfg.BusConfig())
		defer bus.Close(cmd.Context())

		health := bus.HealthCheck(cmd.Context())
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(health); err != nil {
			return err
		}
		if health.Status != eventbus.StatusHealthy {
			return fmt.Errorf("bus %s", health.Status)
		}
		return nil
	},
}
