package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) SweepCharts(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestRegisterAll_InvalidCron(t *testing.T) {
	s := NewScheduler(context.Background(), &countingSweeper{})
	if err := s.RegisterAll("not a cron spec"); err == nil {
		t.Error("want error for invalid cron spec")
	}
}

func TestScheduler_RunsSweep(t *testing.T) {
	sw := &countingSweeper{err: errors.New("store offline")}
	s := NewScheduler(context.Background(), sw)
	if err := s.RegisterAll("* * * * * *"); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for sw.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if sw.calls.Load() == 0 {
		t.Error("sweep never ran")
	}
}

func TestRunSweepNow(t *testing.T) {
	sw := &countingSweeper{}
	n, err := NewScheduler(context.Background(), sw).RunSweepNow()
	if err != nil || n != 1 || sw.calls.Load() != 1 {
		t.Errorf("got %d, %v, calls %d", n, err, sw.calls.Load())
	}
}
