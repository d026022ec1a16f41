package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper removes chart images that no record references.
type Sweeper interface {
	SweepCharts(ctx context.Context) (int, error)
}

// Scheduler manages maintenance cron tasks.
type Scheduler struct {
	Cron    *cron.Cron
	Sweeper Sweeper
	Ctx     context.Context
}

// NewScheduler creates a new Scheduler. Cron specs include a seconds field.
func NewScheduler(ctx context.Context, sw Sweeper) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Sweeper: sw,
		Ctx:     ctx,
	}
}

// RegisterAll registers the chart sweep.
func (s *Scheduler) RegisterAll(sweepCron string) error {
	if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunSweepNow executes the sweep immediately.
func (s *Scheduler) RunSweepNow() (int, error) {
	return s.Sweeper.SweepCharts(s.Ctx)
}

func (s *Scheduler) sweepTask() {
	slog.Info("running chart sweep")
	if _, err := s.RunSweepNow(); err != nil {
		slog.Error("chart sweep failed", "err", err)
	}
}
