package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"PriceOptimizer/internal/calculator"
	"PriceOptimizer/internal/config"
	"PriceOptimizer/internal/httpapi"
	"PriceOptimizer/internal/identity"
	"PriceOptimizer/internal/imagestore"
	"PriceOptimizer/internal/notifier"
	"PriceOptimizer/internal/optimizer"
	"PriceOptimizer/internal/scheduler"
)

var runSweepOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API, the chart file server and the cron scheduler that
sweeps orphaned chart images. Stops on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&runSweepOnStart, "sweep-on-start", false, "run the chart sweep once at startup")
	rootCmd.AddCommand(serveCmd)
}

func serviceConfig(cfg *config.Config) optimizer.Config {
	return optimizer.Config{
		Workers:      cfg.Compute.Workers,
		SolveTimeout: cfg.Compute.SolveTimeout.Duration,
		Variables: calculator.Variables{
			Price:    cfg.Compute.PriceVariable,
			Quantity: cfg.Compute.QuantityVariable,
		},
	}
}

func newNotifier(cfg *config.Config) notifier.Notifier {
	if !cfg.TelegramEnabled() {
		slog.Info("telegram notifications disabled")
		return notifier.NoopNotifier{}
	}
	chatID, err := cfg.TelegramChatID()
	if err != nil {
		slog.Warn("telegram disabled", "err", err)
		return notifier.NoopNotifier{}
	}
	tn, err := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, chatID)
	if err != nil {
		slog.Warn("init telegram notifier failed, notifications disabled", "err", err)
		return notifier.NoopNotifier{}
	}
	return tn
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		printError("config validation", err)
		return err
	}
	slog.Info("price optimizer starting", "addr", cfg.Server.Addr, "db", cfg.Database.Driver)

	ids, err := identity.NewJWTResolver(cfg.Auth.Secret, cfg.Auth.TokenTTL.Duration)
	if err != nil {
		return fmt.Errorf("init identity: %w", err)
	}

	rec, err := openRecorder(cfg)
	if err != nil {
		return fmt.Errorf("init recorder: %w", err)
	}
	defer rec.Close()

	store, err := imagestore.NewFileStore(cfg.Charts.Dir, cfg.Server.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("init chart store: %w", err)
	}

	svc := optimizer.New(serviceConfig(cfg), rec, store, newNotifier(cfg))
	defer svc.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, svc)
	if err := sched.RegisterAll(cfg.Schedule.SweepCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if runSweepOnStart {
		go func() {
			if _, err := sched.RunSweepNow(); err != nil {
				slog.Error("startup sweep failed", "err", err)
			}
		}()
	}

	srv := httpapi.New(httpapi.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}, svc, ids, store)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	slog.Info("price optimizer stopped")
	return nil
}
