package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config", err)
		return err
	}
	rec, err := openRecorder(cfg)
	if err != nil {
		printError("migrate", err)
		return err
	}
	defer rec.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
	return nil
}
