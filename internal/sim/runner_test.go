package sim

import (
	"context"
	"errors"
	"testing"

	"gridlab/internal/collect"
)

type countingModel struct {
	ticks     int
	collector *collect.Collector
	tickErr   error
}

func newCountingModel(t *testing.T) *countingModel {
	t.Helper()
	m := &countingModel{}
	c, err := collect.New(map[string]collect.ModelReporter{
		"ticks": func() float64 { return float64(m.ticks) },
	}, nil, nil)
	if err != nil {
		t.Fatalf("collector: %v", err)
	}
	m.collector = c
	return m
}

func (m *countingModel) Kind() string { return "counting" }

func (m *countingModel) Tick(_ context.Context) error {
	if m.tickErr != nil {
		return m.tickErr
	}
	m.ticks++
	return nil
}

func (m *countingModel) Collect(step int)              { m.collector.Collect(step) }
func (m *countingModel) Collector() *collect.Collector { return m.collector }

func TestRunCollectsEveryPeriod(t *testing.T) {
	m := newCountingModel(t)
	steps, err := Run(context.Background(), m, RunConfig{MaxSteps: 10, CollectionPeriod: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if steps != 10 {
		t.Fatalf("expected 10 completed steps, got %d", steps)
	}
	rows := m.collector.Rows()
	if len(rows) != ExpectedRows(10, 3) {
		t.Fatalf("expected %d rows, got %d", ExpectedRows(10, 3), len(rows))
	}
	wantSteps := []int{0, 3, 6, 9}
	for i, row := range rows {
		if row.Step != wantSteps[i] {
			t.Fatalf("row %d collected at step %d, want %d", i, row.Step, wantSteps[i])
		}
	}
}

func TestRunPropagatesTickError(t *testing.T) {
	m := newCountingModel(t)
	m.tickErr = errors.New("boom")
	steps, err := Run(context.Background(), m, RunConfig{MaxSteps: 5})
	if err == nil {
		t.Fatal("expected tick error")
	}
	if steps != 0 {
		t.Fatalf("expected 0 completed steps, got %d", steps)
	}
}

func TestRunStopsBetweenTicks(t *testing.T) {
	m := newCountingModel(t)
	control := make(chan Command, 1)
	control <- CommandStop
	steps, err := Run(context.Background(), m, RunConfig{MaxSteps: 100, Control: control})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if steps != 0 {
		t.Fatalf("expected stop before first tick, got %d steps", steps)
	}
}

func TestRunPauseThenContinue(t *testing.T) {
	m := newCountingModel(t)
	control := make(chan Command, 2)
	control <- CommandPause
	control <- CommandContinue
	steps, err := Run(context.Background(), m, RunConfig{MaxSteps: 3, Control: control})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if steps != 3 {
		t.Fatalf("expected 3 completed steps, got %d", steps)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	m := newCountingModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	steps, err := Run(ctx, m, RunConfig{MaxSteps: 50})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if steps != 0 {
		t.Fatalf("expected no completed steps, got %d", steps)
	}
}

func TestExpectedRows(t *testing.T) {
	cases := []struct {
		maxSteps, period, want int
	}{
		{10, 1, 11},
		{10, 3, 4},
		{10, 0, 11},
		{0, 1, 1},
	}
	for _, tc := range cases {
		if got := ExpectedRows(tc.maxSteps, tc.period); got != tc.want {
			t.Fatalf("ExpectedRows(%d,%d)=%d want %d", tc.maxSteps, tc.period, got, tc.want)
		}
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	def := Definition{
		Kind:       "runner-test-kind",
		ParamNames: []string{"population"},
		New: func(_ Params, _ int64) (Model, error) {
			return newCountingModel(t), nil
		},
	}
	if err := Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(def); err == nil {
		t.Fatal("expected duplicate kind error")
	}
	got, ok := Lookup("runner-test-kind")
	if !ok || got.Kind != def.Kind {
		t.Fatalf("lookup failed: %+v ok=%t", got, ok)
	}
}
