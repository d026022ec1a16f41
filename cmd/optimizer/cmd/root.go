package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"PriceOptimizer/internal/config"
	"PriceOptimizer/internal/logging"
	"PriceOptimizer/internal/recorder"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "optimizer",
	Short: "Profit-maximizing price optimizer",
	Long: `optimizer finds the price that maximizes profit for a cost function C(q)
and a demand function q(p), stores named optimizations per owner and
renders a profit chart for each.

Commands:
  serve    - run the HTTP API and the maintenance scheduler
  solve    - compute one optimization from the command line
  migrate  - create or upgrade the database schema
  token    - issue a bearer token for an owner
  sweep    - delete chart images no record references`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, YAML or TOML (default: $CONFIG_PATH or configs/config.yaml)")
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}

// loadConfig reads the config file and sets up logging.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return cfg, nil
}

func openRecorder(cfg *config.Config) (*recorder.SQLRecorder, error) {
	if cfg.Database.Driver == "sqlite" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}
	return recorder.NewSQLRecorder(cfg.Database.Driver, cfg.Database.DSN)
}
