package main

import (
	"github.com/spf13/cobra"

	"github.com/vehicle-quality/acd-registry/pkg/config"
	"github.com/vehicle-quality/acd-registry/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "acd-server",
	Short: "Investigation registry server",
	Long: `acd-server hosts the investigation registry: projects, the source ledger
that binds upstream evidence records to exactly one project, and the audit trail.

Configuration is read from --config (YAML), ACD_* environment variables and flags.`,
	SilenceUsage: true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

// loadConfig resolves the configuration for cmd and installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log, cmd.ErrOrStderr())
	return cfg, nil
}
