package optimizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"PriceOptimizer/internal/calculator"
	"PriceOptimizer/internal/chart"
	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/parser"
	"PriceOptimizer/internal/recorder"
)

type memStore struct {
	mu      sync.Mutex
	charts  map[recorder.ChartRef][]byte
	uploads int
}

func newMemStore() *memStore { return &memStore{charts: map[recorder.ChartRef][]byte{}} }

func (m *memStore) Upload(_ context.Context, data []byte, ownerID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	m.charts[recorder.ChartRef{OwnerID: ownerID, Key: key}] = data
	return "http://test/charts/" + ownerID + "/" + key + ".png", nil
}

func (m *memStore) Delete(_ context.Context, ownerID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.charts, recorder.ChartRef{OwnerID: ownerID, Key: key})
	return nil
}

func (m *memStore) Keys(context.Context) ([]recorder.ChartRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recorder.ChartRef
	for ref := range m.charts {
		out = append(out, ref)
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charts)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.EventType
	err    error
}

func (r *recordingNotifier) NotifyOptimization(_ context.Context, _ *model.Record, e model.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

// failingSave wraps a recorder and fails every Save and Update.
type failingSave struct{ recorder.Recorder }

func (failingSave) Save(context.Context, *model.Record) error   { return errors.New("disk full") }
func (failingSave) Update(context.Context, *model.Record) error { return errors.New("disk full") }

func fakeRender(*calculator.ProfitModel, model.Result) ([]byte, error) { return []byte("png"), nil }

func newService(rec recorder.Recorder, store *memStore, n *recordingNotifier) *Service {
	s := New(Config{Workers: 2, SolveTimeout: time.Second}, rec, store, n)
	s.render = fakeRender
	return s
}

var widget = model.Request{Name: "widget", CostFunction: "10+2*q", DemandFunction: "100-p"}

func TestCompute(t *testing.T) {
	s := newService(recorder.NewMemoryRecorder(), newMemStore(), &recordingNotifier{})
	_, res, err := s.Compute(context.Background(), "10+2*q", "100-p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OptimalPrice != 51 || res.MaxProfit != 2391 || !res.Verified {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCompute_ErrorOrder(t *testing.T) {
	s := newService(recorder.NewMemoryRecorder(), newMemStore(), &recordingNotifier{})
	tests := []struct {
		name   string
		cost   string
		demand string
		want   error
		code   string
	}{
		{"bad charset", "10+2*x", "100-p", parser.ErrValidation, CodeValidation},
		{"unbalanced", "2*(q+1", "100-p", parser.ErrValidation, CodeValidation},
		{"grammar", "2q", "100-p", parser.ErrParse, CodeParse},
		{"root of a negative constant", "(0-8)**0.5*q", "100-p", calculator.ErrModelBuild, CodeModelBuild},
		{"no optimum", "q", "10+0*p", calculator.ErrNoCriticalPoint, CodeNoCriticalPoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.Compute(context.Background(), tt.cost, tt.demand)
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
			if code, _ := Code(err); code != tt.code {
				t.Errorf("want code %s, got %s", tt.code, code)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	rec := recorder.NewMemoryRecorder()
	store := newMemStore()
	n := &recordingNotifier{}
	s := newService(rec, store, n)
	ctx := context.Background()

	got, err := s.Create(ctx, "alice", widget)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID == "" || got.ChartURL == "" || got.OptimalPrice != 51 || got.ProfitFunction != "-p**2 + 102*p - 210" {
		t.Errorf("unexpected record: %+v", got)
	}
	if store.count() != 1 {
		t.Errorf("want 1 chart, got %d", store.count())
	}

	if _, err := s.Create(ctx, "alice", widget); !errors.Is(err, ErrNameTaken) {
		t.Errorf("want ErrNameTaken, got %v", err)
	}
	if _, err := s.Create(ctx, "bob", widget); err != nil {
		t.Errorf("other owner may reuse the name: %v", err)
	}

	s.Close()
	if len(n.events) != 2 || n.events[0] != model.EventCreated {
		t.Errorf("unexpected notifications: %v", n.events)
	}
}

func TestCreate_NoSideEffectsOnFailure(t *testing.T) {
	rec := recorder.NewMemoryRecorder()
	store := newMemStore()
	s := newService(rec, store, &recordingNotifier{})
	ctx := context.Background()

	bad := model.Request{Name: "flat", CostFunction: "q", DemandFunction: "10+0*p"}
	if _, err := s.Create(ctx, "alice", bad); !errors.Is(err, calculator.ErrNoCriticalPoint) {
		t.Fatalf("want ErrNoCriticalPoint, got %v", err)
	}

	s.render = func(*calculator.ProfitModel, model.Result) ([]byte, error) {
		return nil, chart.ErrRender
	}
	if _, err := s.Create(ctx, "alice", widget); !errors.Is(err, chart.ErrRender) {
		t.Fatalf("want ErrRender, got %v", err)
	}
	if store.uploads != 0 {
		t.Errorf("want no uploads, got %d", store.uploads)
	}
	if recs, _ := rec.ListByOwner(ctx, "alice"); len(recs) != 0 {
		t.Errorf("want no records, got %d", len(recs))
	}
}

func TestCreate_SaveFailureRemovesChart(t *testing.T) {
	store := newMemStore()
	s := newService(failingSave{recorder.NewMemoryRecorder()}, store, &recordingNotifier{})
	if _, err := s.Create(context.Background(), "alice", widget); err == nil {
		t.Fatal("want save error")
	}
	if store.uploads != 1 || store.count() != 0 {
		t.Errorf("want uploaded chart removed, uploads=%d stored=%d", store.uploads, store.count())
	}
}

func TestCreate_InvalidRequest(t *testing.T) {
	s := newService(recorder.NewMemoryRecorder(), newMemStore(), &recordingNotifier{})
	_, err := s.Create(context.Background(), "alice", model.Request{Name: " "})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("want ErrInvalidRequest, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	rec := recorder.NewMemoryRecorder()
	store := newMemStore()
	s := newService(rec, store, &recordingNotifier{})
	ctx := context.Background()

	created, err := s.Create(ctx, "alice", widget)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "alice", model.Request{Name: "gadget", CostFunction: "q", DemandFunction: "20-p"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Rename only: no recomputation.
	renamed, err := s.Update(ctx, "alice", "widget", model.Request{Name: "widget2", CostFunction: widget.CostFunction, DemandFunction: widget.DemandFunction})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.ChartKey != created.ChartKey || store.uploads != 2 {
		t.Errorf("rename should not re-render: key %s -> %s, uploads %d", created.ChartKey, renamed.ChartKey, store.uploads)
	}

	// Function change: recompute and replace the chart.
	changed, err := s.Update(ctx, "alice", "widget2", model.Request{Name: "widget2", CostFunction: "q**2", DemandFunction: "20-p"})
	if err != nil {
		t.Fatalf("update functions: %v", err)
	}
	if changed.OptimalPrice != 15 || changed.ChartKey == created.ChartKey {
		t.Errorf("unexpected record: %+v", changed)
	}
	if store.count() != 2 {
		t.Errorf("old chart should be removed, stored=%d", store.count())
	}

	if _, err := s.Update(ctx, "alice", "widget2", model.Request{Name: "gadget", CostFunction: "q", DemandFunction: "20-p"}); !errors.Is(err, ErrNameTaken) {
		t.Errorf("want ErrNameTaken, got %v", err)
	}
	if _, err := s.Update(ctx, "alice", "missing", widget); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestGetListDelete(t *testing.T) {
	rec := recorder.NewMemoryRecorder()
	store := newMemStore()
	s := newService(rec, store, &recordingNotifier{err: errors.New("telegram down")})
	ctx := context.Background()

	if _, err := s.Create(ctx, "alice", widget); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(ctx, "alice", "widget")
	if err != nil || got.Name != "widget" {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, "bob", "widget"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound for other owner, got %v", err)
	}
	list, err := s.List(ctx, "alice")
	if err != nil || len(list) != 1 {
		t.Errorf("list: %v, %v", list, err)
	}

	if err := s.Delete(ctx, "alice", "widget"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.count() != 0 {
		t.Errorf("chart should be deleted, stored=%d", store.count())
	}
	if err := s.Delete(ctx, "alice", "widget"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	s.Close()
}

func TestSweepCharts(t *testing.T) {
	rec := recorder.NewMemoryRecorder()
	store := newMemStore()
	s := newService(rec, store, &recordingNotifier{})
	ctx := context.Background()

	if _, err := s.Create(ctx, "alice", widget); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.Upload(ctx, []byte("orphan"), "alice", "orphan")

	removed, err := s.SweepCharts(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 || store.count() != 1 {
		t.Errorf("want 1 orphan removed and 1 chart kept, removed=%d stored=%d", removed, store.count())
	}
}

func TestRun_AbandonedContext(t *testing.T) {
	s := New(Config{Workers: 1}, recorder.NewMemoryRecorder(), newMemStore(), nil)
	release := make(chan struct{})
	go s.run(context.Background(), time.Minute, calculator.ErrSolveTimeout, func(context.Context) error { <-release; return nil })
	defer close(release)

	// Wait for the single worker to be taken.
	for s.sem.TryAcquire(1) {
		s.sem.Release(1)
		time.Sleep(time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.run(ctx, time.Minute, calculator.ErrSolveTimeout, func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want deadline exceeded while waiting for a worker, got %v", err)
	}
}

func TestRun_LimitWithoutRequestDeadline(t *testing.T) {
	s := New(Config{Workers: 1}, recorder.NewMemoryRecorder(), newMemStore(), nil)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := s.run(context.Background(), 20*time.Millisecond, calculator.ErrSolveTimeout, func(context.Context) error {
		<-release
		return nil
	})
	if !errors.Is(err, calculator.ErrSolveTimeout) {
		t.Errorf("want ErrSolveTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("run waited %v", elapsed)
	}
}

func TestCompute_HighDegreeHonoursSolveTimeout(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("100-p")
	for k := 2; k <= 31; k++ {
		fmt.Fprintf(&sb, "+p**%d/%d", k, 7*k*k+3)
	}
	s := New(Config{Workers: 1, SolveTimeout: 200 * time.Millisecond}, recorder.NewMemoryRecorder(), newMemStore(), nil)

	start := time.Now()
	_, _, err := s.Compute(context.Background(), "q**2/3+5*q+11", sb.String())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("compute ran %v with a 200ms solve timeout", elapsed)
	}
	if err == nil {
		return
	}
	if code, status := Code(err); code != CodeSolveTimeout || status != http.StatusGatewayTimeout {
		t.Errorf("want %s/504, got %s/%d (%v)", CodeSolveTimeout, code, status, err)
	}
}

// staleLookup hides existing records from FindByNameAndOwner, as when a
// concurrent request saves the same name after the check.
type staleLookup struct{ recorder.Recorder }

func (staleLookup) FindByNameAndOwner(_ context.Context, name, ownerID string) (*model.Record, error) {
	return nil, fmt.Errorf("%s/%s: %w", ownerID, name, recorder.ErrNotFound)
}

func TestCreate_NameRaceReportsNameTaken(t *testing.T) {
	store := newMemStore()
	s := newService(staleLookup{recorder.NewMemoryRecorder()}, store, &recordingNotifier{})
	ctx := context.Background()
	if _, err := s.Create(ctx, "alice", widget); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.Create(ctx, "alice", widget)
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("want ErrNameTaken, got %v", err)
	}
	if code, status := Code(err); code != CodeNameTaken || status != http.StatusBadRequest {
		t.Errorf("want %s/400, got %s/%d", CodeNameTaken, code, status)
	}
	if store.uploads != 2 || store.count() != 1 {
		t.Errorf("want losing chart removed, uploads=%d stored=%d", store.uploads, store.count())
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{ErrNotFound, CodeNotFound, http.StatusNotFound},
		{ErrNameTaken, CodeNameTaken, http.StatusBadRequest},
		{calculator.ErrSolveTimeout, CodeSolveTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, status := Code(tt.err)
		if code != tt.code || status != tt.status {
			t.Errorf("%v: want %s/%d, got %s/%d", tt.err, tt.code, tt.status, code, status)
		}
	}
}
