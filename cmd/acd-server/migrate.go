package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.close() }()

		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info("schema up to date", "db", cfg.DB.Type)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo projects into an empty database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.close() }()

		if err := a.migrate(cmd.Context()); err != nil {
			return err
		}
		n, err := a.seed(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("seeded %d projects\n", n)
		return nil
	},
}
