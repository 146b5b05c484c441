package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// clientEnv supplies flag defaults from the environment.
type clientEnv struct {
	Server string `env:"ACD_SERVER" envDefault:"http://localhost:8080"`
	Role   string `env:"ACD_ROLE" envDefault:"RM"`
	Output string `env:"ACD_OUTPUT" envDefault:"table"`
}

var (
	serverURL string
	role      string
	outputFmt string
)

var rootCmd = &cobra.Command{
	Use:   "acdctl",
	Short: "CLI for the acd-registry server",
	Long: `acdctl creates and inspects investigation projects, binds upstream
evidence records (SSNW, Warranty, TAC) to them and reads the audit trail.

Every request carries the role given by --role (or ACD_ROLE) in the
X-User-Role header; the server decides what that role may do.`,
	SilenceUsage: true,
}

func init() {
	defaults, err := env.ParseAs[clientEnv]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring environment defaults: %v\n", err)
		defaults = clientEnv{Server: "http://localhost:8080", Role: "RM", Output: "table"}
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaults.Server, "Server URL (env ACD_SERVER)")
	rootCmd.PersistentFlags().StringVar(&role, "role", defaults.Role, "Caller role: RM, TAC, Quality, Admin (env ACD_ROLE)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", defaults.Output, "Output format: table, json, yaml (env ACD_OUTPUT)")

	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
}
