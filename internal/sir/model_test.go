package sir

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gridlab/internal/model"
	"gridlab/internal/sim"
)

func singleCellConfig(population int) Config {
	cfg := DefaultConfig()
	cfg.Population = population
	cfg.Width = 1
	cfg.Height = 1
	cfg.InfectionRate = 1.0
	cfg.RecoveryTimeRange = [2]int{2, 2}
	cfg.NInitialInfections = 1
	return cfg
}

func stateOf(t *testing.T, m *Model, id int) model.HealthState {
	t.Helper()
	s, ok := m.StateOf(id)
	if !ok {
		t.Fatalf("unknown agent %d", id)
	}
	return s
}

func initiallyInfected(t *testing.T, m *Model) int {
	t.Helper()
	for _, id := range m.AgentIDs() {
		if stateOf(t, m, id) == model.Infected {
			return id
		}
	}
	t.Fatal("no initially infected agent")
	return -1
}

// On a single-cell grid with certain transmission the epidemic is fully
// deterministic: everyone is infected on the first tick, the index case
// recovers exactly at its recovery threshold, and the rest follow one clock
// tick behind.
func TestSingleCellOutbreak(t *testing.T) {
	m, err := New(singleCellConfig(5), 42)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	s, i, r := m.Counts()
	if s != 4 || i != 1 || r != 0 {
		t.Fatalf("initial counts = (%d,%d,%d), want (4,1,0)", s, i, r)
	}
	index := initiallyInfected(t, m)

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if s, i, r = m.Counts(); s != 0 || i != 5 || r != 0 {
		t.Fatalf("counts after tick 1 = (%d,%d,%d), want (0,5,0)", s, i, r)
	}

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if got := stateOf(t, m, index); got != model.Recovered {
		t.Fatalf("index case state after tick 2 = %s, want recovered", got)
	}
	if _, _, r = m.Counts(); r != 1 {
		t.Fatalf("recovered after tick 2 = %d, want 1", r)
	}

	if err := m.Tick(ctx); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if s, i, r = m.Counts(); s != 0 || i != 0 || r != 5 {
		t.Fatalf("counts after tick 3 = (%d,%d,%d), want (0,0,5)", s, i, r)
	}
}

func TestStatesProgressMonotonically(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 40
	cfg.Width = 6
	cfg.Height = 6
	cfg.InfectionRate = 0.8
	cfg.RecoveryTimeRange = [2]int{1, 4}
	cfg.NInitialInfections = 3
	m, err := New(cfg, 7)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rank := map[model.HealthState]int{
		model.Susceptible: 0,
		model.Infected:    1,
		model.Recovered:   2,
	}
	prev := make(map[int]model.HealthState)
	for _, id := range m.AgentIDs() {
		prev[id] = stateOf(t, m, id)
	}

	for tick := 1; tick <= 30; tick++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		for _, id := range m.AgentIDs() {
			cur := stateOf(t, m, id)
			if rank[cur] < rank[prev[id]] {
				t.Fatalf("tick %d: agent %d regressed %s -> %s", tick, id, prev[id], cur)
			}
			prev[id] = cur
		}
		s, i, r := m.Counts()
		if s+i+r != cfg.Population {
			t.Fatalf("tick %d: compartments sum to %d, want %d", tick, s+i+r, cfg.Population)
		}
	}
}

func TestZeroInfectionRateNeverSpreads(t *testing.T) {
	cfg := singleCellConfig(8)
	cfg.InfectionRate = 0
	cfg.RecoveryTimeRange = [2]int{100, 100}
	m, err := New(cfg, 3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for tick := 1; tick <= 20; tick++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if _, i, _ := m.Counts(); i != 1 {
			t.Fatalf("tick %d: infected = %d, want 1", tick, i)
		}
	}
}

func TestLedgerSymmetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 20
	cfg.Width = 4
	cfg.Height = 4
	cfg.NInitialInfections = 2
	m, err := New(cfg, 11)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for tick := 1; tick <= 15; tick++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	ledgers := m.Ledgers()
	contacts := 0
	for id, ledger := range ledgers {
		for peer, count := range ledger {
			if peer == id {
				t.Fatalf("agent %d recorded a self contact", id)
			}
			if count <= 0 {
				t.Fatalf("agent %d ledger holds non-positive count %d for peer %d", id, count, peer)
			}
			if ledgers[peer][id] != count {
				t.Fatalf("asymmetric ledger: %d->%d is %d but %d->%d is %d",
					id, peer, count, peer, id, ledgers[peer][id])
			}
			contacts += count
		}
	}
	if contacts == 0 {
		t.Fatal("expected contacts on a 4x4 grid with 20 agents")
	}
}

func TestSameSeedSameTrajectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 30
	cfg.Width = 5
	cfg.Height = 5
	cfg.NInitialInfections = 2

	run := func() []model.ModelRow {
		m, err := New(cfg, 99)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		steps, err := sim.Run(context.Background(), m, sim.RunConfig{MaxSteps: 12, CollectionPeriod: 2})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if steps != 12 {
			t.Fatalf("completed %d steps, want 12", steps)
		}
		return m.Collector().Rows()
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed produced different trajectories:\n%+v\n%+v", first, second)
	}
}

func TestAgentTrackingRows(t *testing.T) {
	cfg := singleCellConfig(3)
	cfg.TrackAgents = true
	m, err := New(cfg, 5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := sim.Run(context.Background(), m, sim.RunConfig{MaxSteps: 4}); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows := m.Collector().AgentRows()
	if want := 5 * cfg.Population; len(rows) != want {
		t.Fatalf("agent rows = %d, want %d", len(rows), want)
	}
	for _, row := range rows {
		if _, ok := row.Values["state_code"]; !ok {
			t.Fatalf("agent row missing state_code: %+v", row)
		}
		if _, ok := row.Values["ticks_since_infection"]; !ok {
			t.Fatalf("agent row missing ticks_since_infection: %+v", row)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero population", func(c *Config) { c.Population = 0 }},
		{"negative width", func(c *Config) { c.Width = -1 }},
		{"rate above one", func(c *Config) { c.InfectionRate = 1.5 }},
		{"inverted recovery range", func(c *Config) { c.RecoveryTimeRange = [2]int{5, 2} }},
		{"negative step size", func(c *Config) { c.MaxAgentStepSize = -1 }},
		{"too many initial infections", func(c *Config) { c.NInitialInfections = c.Population + 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := New(cfg, 1); !errors.Is(err, sim.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestConfigFromParams(t *testing.T) {
	cfg, err := ConfigFromParams(sim.Params{
		"population":     50,
		"width":          8,
		"height":         9,
		"infection_rate": 0.4,
		"torus":          true,
	})
	if err != nil {
		t.Fatalf("from params: %v", err)
	}
	if cfg.Population != 50 || cfg.Width != 8 || cfg.Height != 9 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.InfectionRate != 0.4 || !cfg.Torus {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MaxAgentStepSize != 1 {
		t.Fatalf("default step size lost: %+v", cfg)
	}

	if _, err := ConfigFromParams(sim.Params{"velocity": 3}); !errors.Is(err, sim.ErrConfiguration) {
		t.Fatalf("expected unknown parameter rejection, got %v", err)
	}
}

func TestKindRegistered(t *testing.T) {
	def, ok := sim.Lookup(Kind)
	if !ok {
		t.Fatal("sir kind not registered")
	}
	m, err := def.New(sim.Params{"population": 12, "width": 3, "height": 3}, 4)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if m.Kind() != Kind {
		t.Fatalf("kind = %s, want %s", m.Kind(), Kind)
	}
}
