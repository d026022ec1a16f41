// Package optimizer sequences parsing, model building, solving and chart
// rendering, and keeps records, charts and notifications consistent.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"PriceOptimizer/internal/calculator"
	"PriceOptimizer/internal/chart"
	"PriceOptimizer/internal/imagestore"
	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/notifier"
	"PriceOptimizer/internal/parser"
	"PriceOptimizer/internal/recorder"
)

const (
	notifyTimeout = 30 * time.Second
	renderTimeout = 30 * time.Second
	// sweepGrace protects charts uploaded by requests still in flight.
	sweepGrace = 10 * time.Minute
)

// Config tunes the computation pool.
type Config struct {
	// Workers bounds concurrent computations. Zero means GOMAXPROCS.
	Workers int
	// SolveTimeout bounds one solve. Zero means five seconds.
	SolveTimeout time.Duration
	Variables    calculator.Variables
}

// Service runs optimizations for owners.
type Service struct {
	recorder     recorder.Recorder
	store        imagestore.Store
	notifier     notifier.Notifier
	sem          *semaphore.Weighted
	solveTimeout time.Duration
	vars         calculator.Variables

	render func(*calculator.ProfitModel, model.Result) ([]byte, error)
	now    func() time.Time
	wg     sync.WaitGroup
}

// New creates a Service. A nil notifier disables notifications.
func New(cfg Config, rec recorder.Recorder, store imagestore.Store, n notifier.Notifier) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.SolveTimeout <= 0 {
		cfg.SolveTimeout = 5 * time.Second
	}
	if cfg.Variables == (calculator.Variables{}) {
		cfg.Variables = calculator.DefaultVariables
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	return &Service{
		recorder:     rec,
		store:        store,
		notifier:     n,
		sem:          semaphore.NewWeighted(int64(cfg.Workers)),
		solveTimeout: cfg.SolveTimeout,
		vars:         cfg.Variables,
		render:       chart.Render,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Variables returns the price and quantity symbols the service parses with.
func (s *Service) Variables() calculator.Variables { return s.vars }

// Close waits for pending notifications.
func (s *Service) Close() { s.wg.Wait() }

type outcome struct {
	model  *calculator.ProfitModel
	result model.Result
	chart  []byte
}

// Validate runs the syntactic check on both function texts.
func (s *Service) Validate(cost, demand string) error {
	if err := parser.Validate(cost, s.vars.Quantity); err != nil {
		return fmt.Errorf("cost function: %w", err)
	}
	if err := parser.Validate(demand, s.vars.Price); err != nil {
		return fmt.Errorf("demand function: %w", err)
	}
	return nil
}

// Compute validates, parses, builds and solves without side effects.
func (s *Service) Compute(ctx context.Context, cost, demand string) (*calculator.ProfitModel, model.Result, error) {
	out, err := s.evaluate(ctx, cost, demand, false)
	if err != nil {
		return nil, model.Result{}, err
	}
	return out.model, out.result, nil
}

// ComputeWithChart is Compute followed by chart rendering.
func (s *Service) ComputeWithChart(ctx context.Context, cost, demand string) (model.Result, []byte, error) {
	out, err := s.evaluate(ctx, cost, demand, true)
	if err != nil {
		return model.Result{}, nil, err
	}
	return out.result, out.chart, nil
}

func (s *Service) evaluate(ctx context.Context, cost, demand string, render bool) (*outcome, error) {
	if err := s.Validate(cost, demand); err != nil {
		return nil, err
	}
	var out outcome
	err := s.run(ctx, s.solveTimeout, calculator.ErrSolveTimeout, func(ctx context.Context) error {
		costExpr, err := parser.Parse(cost, s.vars.Quantity)
		if err != nil {
			return fmt.Errorf("cost function: %w", err)
		}
		demandExpr, err := parser.Parse(demand, s.vars.Price)
		if err != nil {
			return fmt.Errorf("demand function: %w", err)
		}
		m, err := calculator.BuildProfitModel(costExpr, demandExpr, s.vars)
		if err != nil {
			return err
		}
		res, err := calculator.Solve(ctx, m)
		if err != nil {
			return err
		}
		out.model, out.result = m, res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if render {
		err = s.run(ctx, renderTimeout, chart.ErrRender, func(context.Context) error {
			img, err := s.render(out.model, out.result)
			out.chart = img
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// run executes fn on the worker pool. Once a worker is free fn gets at most
// limit; when that runs out the caller receives onTimeout without waiting
// for fn to notice.
func (s *Service) run(ctx context.Context, limit time.Duration, onTimeout error, fn func(context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for worker: %w", err)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, limit, onTimeout)
	done := make(chan error, 1)
	go func() {
		defer s.sem.Release(1)
		defer cancel()
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, onTimeout) {
			return fmt.Errorf("%w: gave up after %s", onTimeout, limit)
		}
		return fmt.Errorf("computation abandoned: %w", ctx.Err())
	}
}

func checkRequest(req model.Request) error {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "optimization_name")
	}
	if req.CostFunction == "" {
		missing = append(missing, "cost_function")
	}
	if req.DemandFunction == "" {
		missing = append(missing, "demand_function")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// nameFree returns ErrNameTaken when owner already uses name.
func (s *Service) nameFree(ctx context.Context, ownerID, name string) error {
	_, err := s.recorder.FindByNameAndOwner(ctx, name, ownerID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	case errors.Is(err, recorder.ErrNotFound):
		return nil
	}
	return fmt.Errorf("look up %q: %w", name, err)
}

// Create computes and stores a new record. Nothing is written unless the
// computation and chart succeed; a failed save removes the uploaded chart.
func (s *Service) Create(ctx context.Context, ownerID string, req model.Request) (*model.Record, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	if err := s.nameFree(ctx, ownerID, req.Name); err != nil {
		return nil, err
	}
	out, err := s.evaluate(ctx, req.CostFunction, req.DemandFunction, true)
	if err != nil {
		return nil, err
	}

	key := uuid.NewString()
	url, err := s.store.Upload(ctx, out.chart, ownerID, key)
	if err != nil {
		return nil, fmt.Errorf("upload chart: %w", err)
	}

	now := s.now()
	rec := &model.Record{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Name:           req.Name,
		CostFunction:   req.CostFunction,
		DemandFunction: req.DemandFunction,
		ChartKey:       key,
		ChartURL:       url,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyResult(rec, out.result)
	if err := s.recorder.Save(ctx, rec); err != nil {
		s.discardChart(ownerID, key)
		if errors.Is(err, recorder.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %q", ErrNameTaken, req.Name)
		}
		return nil, fmt.Errorf("save optimization: %w", err)
	}

	slog.Info("optimization created", "owner", ownerID, "name", rec.Name,
		"optimal_price", rec.OptimalPrice, "max_profit", rec.MaxProfit, "verified", rec.Verified)
	s.notify(ctx, rec, model.EventCreated)
	return rec, nil
}

func applyResult(rec *model.Record, res model.Result) {
	rec.OptimalPrice = res.OptimalPrice
	rec.MaxProfit = res.MaxProfit
	rec.ProfitFunction = res.ProfitFunction
	rec.Verified = res.Verified
}

// Get returns the owner's record called name.
func (s *Service) Get(ctx context.Context, ownerID, name string) (*model.Record, error) {
	rec, err := s.recorder.FindByNameAndOwner(ctx, name, ownerID)
	if errors.Is(err, recorder.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", name, err)
	}
	return rec, nil
}

// List returns every record of the owner.
func (s *Service) List(ctx context.Context, ownerID string) ([]model.Record, error) {
	recs, err := s.recorder.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list optimizations: %w", err)
	}
	return recs, nil
}

// Update replaces the record called name with req. The optimum and chart are
// recomputed only when a function text changed.
func (s *Service) Update(ctx context.Context, ownerID, name string, req model.Request) (*model.Record, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if req.Name != name {
		if err := s.nameFree(ctx, ownerID, req.Name); err != nil {
			return nil, err
		}
	}

	rec := *existing
	rec.Name = req.Name
	changed := req.CostFunction != existing.CostFunction || req.DemandFunction != existing.DemandFunction
	if changed {
		out, err := s.evaluate(ctx, req.CostFunction, req.DemandFunction, true)
		if err != nil {
			return nil, err
		}
		key := uuid.NewString()
		url, err := s.store.Upload(ctx, out.chart, ownerID, key)
		if err != nil {
			return nil, fmt.Errorf("upload chart: %w", err)
		}
		rec.CostFunction = req.CostFunction
		rec.DemandFunction = req.DemandFunction
		rec.ChartKey = key
		rec.ChartURL = url
		applyResult(&rec, out.result)
	}
	rec.UpdatedAt = s.now()

	if err := s.recorder.Update(ctx, &rec); err != nil {
		if changed {
			s.discardChart(ownerID, rec.ChartKey)
		}
		if errors.Is(err, recorder.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %q", ErrNameTaken, req.Name)
		}
		return nil, fmt.Errorf("update optimization: %w", err)
	}
	if changed && existing.ChartKey != "" {
		s.discardChart(ownerID, existing.ChartKey)
	}

	slog.Info("optimization updated", "owner", ownerID, "name", rec.Name, "recomputed", changed)
	s.notify(ctx, &rec, model.EventUpdated)
	return &rec, nil
}

// Delete removes the record, then its chart. A chart that cannot be removed
// is left for the sweeper.
func (s *Service) Delete(ctx context.Context, ownerID, name string) error {
	rec, err := s.Get(ctx, ownerID, name)
	if err != nil {
		return err
	}
	if err := s.recorder.Delete(ctx, name, ownerID); err != nil {
		if errors.Is(err, recorder.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fmt.Errorf("delete optimization: %w", err)
	}
	if rec.ChartKey != "" {
		s.discardChart(ownerID, rec.ChartKey)
	}
	slog.Info("optimization deleted", "owner", ownerID, "name", name)
	s.notify(ctx, rec, model.EventDeleted)
	return nil
}

func (s *Service) discardChart(ownerID, key string) {
	if err := s.store.Delete(context.Background(), ownerID, key); err != nil {
		slog.Warn("chart cleanup failed", "owner", ownerID, "key", key, "err", err)
	}
}

// notify sends in the background; failures are logged only.
func (s *Service) notify(ctx context.Context, rec *model.Record, event model.EventType) {
	snapshot := *rec
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.notifier.NotifyOptimization(ctx, &snapshot, event); err != nil {
			slog.Warn("notification failed", "owner", snapshot.OwnerID, "name", snapshot.Name,
				"event", event, "err", err)
		}
	}()
}

// SweepCharts deletes stored charts that no record references and returns
// how many were removed.
func (s *Service) SweepCharts(ctx context.Context) (int, error) {
	stored, err := s.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list charts: %w", err)
	}
	used, err := s.recorder.ChartKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chart keys: %w", err)
	}
	inUse := make(map[recorder.ChartRef]bool, len(used))
	for _, ref := range used {
		inUse[recorder.ChartRef{OwnerID: ref.OwnerID, Key: ref.Key}] = true
	}

	cutoff := s.now().Add(-sweepGrace)
	removed := 0
	for _, ref := range stored {
		if inUse[recorder.ChartRef{OwnerID: ref.OwnerID, Key: ref.Key}] || ref.StoredAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, ref.OwnerID, ref.Key); err != nil {
			slog.Warn("sweep: delete chart failed", "owner", ref.OwnerID, "key", ref.Key, "err", err)
			continue
		}
		removed++
	}
	slog.Info("chart sweep finished", "stored", len(stored), "removed", removed)
	return removed, nil
}
