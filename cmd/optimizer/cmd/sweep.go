package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"PriceOptimizer/internal/imagestore"
	"PriceOptimizer/internal/optimizer"
	"PriceOptimizer/internal/scheduler"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete chart images that no optimization references",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config", err)
		return err
	}
	rec, err := openRecorder(cfg)
	if err != nil {
		printError("recorder", err)
		return err
	}
	defer rec.Close()
	store, err := imagestore.NewFileStore(cfg.Charts.Dir, cfg.Server.PublicBaseURL)
	if err != nil {
		printError("chart store", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	svc := optimizer.New(serviceConfig(cfg), rec, store, nil)
	n, err := scheduler.NewScheduler(ctx, svc).RunSweepNow()
	if err != nil {
		printError("sweep", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned charts\n", n)
	return nil
}
