package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/dbmaint/internal/logger"
	"github.com/kebairia/dbmaint/internal/maintenance"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run maintenance for all configured databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.Init()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return maintenance.Run(cmd.Context(), ConfigFile, DryRun, log)
	},
}

func init() {
	runCmd.Flags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	runCmd.Flags().
		BoolVar(&DryRun, "dry-run", false, "log SQL and dump commands without executing them")
}
