package opinion

import (
	"context"
	"errors"
	"math"
	"testing"

	"gridlab/internal/sim"
)

func singleCellConfig(population int, epsilon float64) Config {
	cfg := DefaultConfig()
	cfg.Population = population
	cfg.Width = 1
	cfg.Height = 1
	cfg.Epsilon = epsilon
	return cfg
}

func runTicks(t *testing.T, m *Model, n int) {
	t.Helper()
	for tick := 1; tick <= n; tick++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
}

func TestZeroEpsilonFreezesOpinions(t *testing.T) {
	m, err := New(singleCellConfig(10, 0), 17)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before := m.Opinions()
	runTicks(t, m, 50)
	after := m.Opinions()
	for id, o := range before {
		if after[id] != o {
			t.Fatalf("agent %d opinion changed %g -> %g with epsilon 0", id, o, after[id])
		}
	}
}

// With epsilon 2 the confidence bound never blocks an interaction, so every
// encounter averages and the whole population collapses to one opinion.
func TestFullEpsilonReachesConsensus(t *testing.T) {
	m, err := New(singleCellConfig(10, 2), 23)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	runTicks(t, m, 300)
	if spread := m.opinionSpread(); spread >= 0.05 {
		t.Fatalf("opinion spread after 300 ticks = %g, want < 0.05", spread)
	}
	if got := m.ClusterCount(0.05); got != 1 {
		t.Fatalf("cluster count = %d, want 1", got)
	}
}

func TestSmallEpsilonFragments(t *testing.T) {
	m, err := New(singleCellConfig(30, 0.05), 31)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	runTicks(t, m, 200)
	if got := m.ClusterCount(0.05); got <= 1 {
		t.Fatalf("cluster count = %d, want fragmentation into several clusters", got)
	}
}

func TestOpinionsStayBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 50
	cfg.Width = 6
	cfg.Height = 6
	m, err := New(cfg, 41)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for tick := 1; tick <= 60; tick++ {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		for id, o := range m.Opinions() {
			if o < -1 || o > 1 {
				t.Fatalf("tick %d: agent %d opinion %g left [-1,1]", tick, id, o)
			}
		}
	}
}

// Pairwise symmetric updates conserve the opinion sum, so the population
// mean is an invariant of the dynamics up to rounding.
func TestMeanOpinionConserved(t *testing.T) {
	m, err := New(singleCellConfig(20, 1.2), 53)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before := m.meanOpinion()
	runTicks(t, m, 200)
	if diff := math.Abs(m.meanOpinion() - before); diff > 1e-9 {
		t.Fatalf("mean opinion drifted by %g", diff)
	}
}

func TestLedgerSymmetry(t *testing.T) {
	m, err := New(singleCellConfig(8, 1.0), 59)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	runTicks(t, m, 40)

	ledgers := m.Ledgers()
	for id, ledger := range ledgers {
		for peer, count := range ledger {
			if peer == id {
				t.Fatalf("agent %d recorded a self-contact", id)
			}
			if back := ledgers[peer][id]; back != count {
				t.Fatalf("ledger asymmetry: %d->%d = %d, %d->%d = %d", id, peer, count, peer, id, back)
			}
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero population", func(c *Config) { c.Population = 0 }},
		{"negative height", func(c *Config) { c.Height = -2 }},
		{"epsilon above two", func(c *Config) { c.Epsilon = 2.5 }},
		{"negative epsilon", func(c *Config) { c.Epsilon = -0.1 }},
		{"zero convergence rate", func(c *Config) { c.ConvergenceRate = 0 }},
		{"overshooting convergence rate", func(c *Config) { c.ConvergenceRate = 0.6 }},
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
		"population":       25,
		"epsilon":          0.3,
		"convergence_rate": 0.25,
		"track_agents":     true,
	})
	if err != nil {
		t.Fatalf("from params: %v", err)
	}
	if cfg.Population != 25 || cfg.Epsilon != 0.3 || cfg.ConvergenceRate != 0.25 || !cfg.TrackAgents {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := ConfigFromParams(sim.Params{"stubbornness": 1}); !errors.Is(err, sim.ErrConfiguration) {
		t.Fatalf("expected unknown parameter rejection, got %v", err)
	}
}

func TestKindRegistered(t *testing.T) {
	def, ok := sim.Lookup(Kind)
	if !ok {
		t.Fatal("opinion kind not registered")
	}
	m, err := def.New(sim.Params{"population": 8, "width": 2, "height": 2}, 6)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if m.Kind() != Kind {
		t.Fatalf("kind = %s, want %s", m.Kind(), Kind)
	}
}
