package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// DryRun simulates every destructive or I/O-producing step.
	DryRun bool

	// rootCmd is the base command for dbmaint.
	rootCmd = &cobra.Command{
		Use:   "dbmaint",
		Short: "CLI tool for scheduled MySQL table maintenance",
		Long: `dbmaint runs declarative maintenance over MySQL tables:
pre-deletion dumps, foreign-key audits, batched row deletion and table
optimization, driven by a YAML configuration file.`,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
