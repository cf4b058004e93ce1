// Package cmd defines and implements the CLI commands for the ecfr-ingest
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regwatch/ecfr-ingest/internal/config"
	"github.com/regwatch/ecfr-ingest/internal/logging"
	"github.com/regwatch/ecfr-ingest/internal/telemetry"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecfr-ingest",
		Short: "Tracks federal regulation metrics from the eCFR API.",
		Long: `ecfr-ingest retrieves agency and CFR title data from the public eCFR
API, computes per-agency content metrics (word count, content fingerprint,
regulatory complexity score), and persists each run as an immutable snapshot
batch. Accumulated snapshots are served back through a read-only HTTP API.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadConfig reads configuration and initializes logging and telemetry.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logging.InitLogger(cfg.Logging.Development)
	telemetry.Init()
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
