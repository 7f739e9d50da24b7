// Package sir implements the Susceptible-Infected-Recovered epidemic model
// on a 2D lattice. Agents move within a bounded step radius, record every
// co-located contact in an interaction ledger, and transmit infection by
// Bernoulli trials against co-located infectious agents.
package sir

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"gridlab/internal/collect"
	"gridlab/internal/grid"
	"gridlab/internal/model"
	"gridlab/internal/schedule"
	"gridlab/internal/sim"
)

const Kind = "sir"

func init() {
	sim.MustRegister(sim.Definition{
		Kind:       Kind,
		ParamNames: append([]string(nil), ParamNames...),
		New: func(params sim.Params, seed int64) (sim.Model, error) {
			cfg, err := ConfigFromParams(params)
			if err != nil {
				return nil, err
			}
			return New(cfg, seed)
		},
	})
}

type agent struct {
	id                int
	state             model.HealthState
	ticksInfected     int
	recoveryThreshold int
	ledger            map[int]int

	m *Model
}

func (a *agent) ID() int { return a.id }

// Step runs one activation: move, resolve contacts at the destination cell,
// then progress the infection clock.
func (a *agent) Step(_ context.Context) error {
	pos, ok := a.m.grid.PositionOf(a.id)
	if !ok {
		return fmt.Errorf("agent %d is not placed", a.id)
	}
	next := a.m.grid.RandomCellNear(a.m.rng, pos, a.m.cfg.MaxAgentStepSize)
	if err := a.m.grid.Place(a.id, next); err != nil {
		return err
	}

	infectedNow := false
	for _, otherID := range a.m.grid.CellmatesOf(a.id) {
		other := a.m.agents[otherID]
		a.ledger[otherID]++
		other.ledger[a.id]++

		if a.state != model.Susceptible || infectedNow {
			continue
		}
		if other.state == model.Infected && a.m.rng.Float64() < a.m.cfg.InfectionRate {
			a.infect()
			infectedNow = true
		}
	}

	// The infection clock starts on the tick after infection.
	if a.state == model.Infected && !infectedNow {
		a.ticksInfected++
		if a.ticksInfected >= a.recoveryThreshold {
			a.state = model.Recovered
		}
	}
	return nil
}

func (a *agent) infect() {
	a.state = model.Infected
	a.ticksInfected = 0
	a.recoveryThreshold = a.m.drawRecoveryThreshold()
}

// Model composes the grid, a random-activation scheduler and the SIR agent
// population.
type Model struct {
	cfg       Config
	seed      int64
	rng       *rand.Rand
	grid      *grid.Grid
	sched     *schedule.RandomActivation
	agents    map[int]*agent
	collector *collect.Collector
	step      int
}

func New(cfg Config, seed int64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	g, err := grid.New(grid.Config{
		Width:  cfg.Width,
		Height: cfg.Height,
		Torus:  cfg.Torus,
		Metric: cfg.Metric,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sim.ErrConfiguration, err)
	}

	m := &Model{
		cfg:    cfg,
		seed:   seed,
		rng:    rng,
		grid:   g,
		sched:  schedule.NewRandomActivation(rng),
		agents: make(map[int]*agent, cfg.Population),
	}

	for id := 0; id < cfg.Population; id++ {
		a := &agent{
			id:     id,
			state:  model.Susceptible,
			ledger: make(map[int]int),
			m:      m,
		}
		if err := g.Place(id, g.RandomCell(rng)); err != nil {
			return nil, err
		}
		if err := m.sched.Add(a); err != nil {
			return nil, err
		}
		m.agents[id] = a
	}

	// Initial infections are drawn without replacement.
	for _, id := range rng.Perm(cfg.Population)[:cfg.NInitialInfections] {
		m.agents[id].infect()
	}

	collector, err := collect.New(map[string]collect.ModelReporter{
		"susceptible": func() float64 { s, _, _ := m.Counts(); return float64(s) },
		"infected":    func() float64 { _, i, _ := m.Counts(); return float64(i) },
		"recovered":   func() float64 { _, _, r := m.Counts(); return float64(r) },
	}, agentColumns(cfg.TrackAgents), m.agentReporter())
	if err != nil {
		return nil, err
	}
	m.collector = collector
	return m, nil
}

func agentColumns(track bool) []string {
	if !track {
		return nil
	}
	return []string{"state_code", "ticks_since_infection"}
}

func (m *Model) agentReporter() collect.AgentReporter {
	if !m.cfg.TrackAgents {
		return nil
	}
	return func(step int) []model.AgentRow {
		rows := make([]model.AgentRow, 0, len(m.agents))
		for _, id := range m.AgentIDs() {
			a := m.agents[id]
			rows = append(rows, model.AgentRow{
				Step:    step,
				AgentID: id,
				Values: map[string]float64{
					"state_code":            stateCode(a.state),
					"ticks_since_infection": float64(a.ticksInfected),
				},
			})
		}
		return rows
	}
}

func stateCode(s model.HealthState) float64 {
	switch s {
	case model.Infected:
		return 1
	case model.Recovered:
		return 2
	default:
		return 0
	}
}

func (m *Model) Kind() string { return Kind }

func (m *Model) Tick(ctx context.Context) error {
	m.step++
	return m.sched.Step(ctx)
}

func (m *Model) Collect(step int)              { m.collector.Collect(step) }
func (m *Model) Collector() *collect.Collector { return m.collector }
func (m *Model) Step() int                     { return m.step }
func (m *Model) Config() Config                { return m.cfg }
func (m *Model) Seed() int64                   { return m.seed }

// Counts returns the compartment sizes.
func (m *Model) Counts() (susceptible, infected, recovered int) {
	for _, a := range m.agents {
		switch a.state {
		case model.Susceptible:
			susceptible++
		case model.Infected:
			infected++
		case model.Recovered:
			recovered++
		}
	}
	return susceptible, infected, recovered
}

func (m *Model) AgentIDs() []int {
	ids := make([]int, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// StateOf returns the health state of an agent.
func (m *Model) StateOf(id int) (model.HealthState, bool) {
	a, ok := m.agents[id]
	if !ok {
		return "", false
	}
	return a.state, true
}

// Ledger returns a copy of one agent's interaction ledger: peer ID mapped
// to cumulative contact count.
func (m *Model) Ledger(id int) (map[int]int, bool) {
	a, ok := m.agents[id]
	if !ok {
		return nil, false
	}
	out := make(map[int]int, len(a.ledger))
	for peer, count := range a.ledger {
		out[peer] = count
	}
	return out, true
}

// Ledgers returns a copy of every agent's interaction ledger, keyed by
// agent ID. The result is consumed externally to build a weighted contact
// graph.
func (m *Model) Ledgers() map[int]map[int]int {
	out := make(map[int]map[int]int, len(m.agents))
	for id := range m.agents {
		ledger, _ := m.Ledger(id)
		out[id] = ledger
	}
	return out
}

func (m *Model) drawRecoveryThreshold() int {
	lo, hi := m.cfg.RecoveryTimeRange[0], m.cfg.RecoveryTimeRange[1]
	if hi == lo {
		return lo
	}
	return lo + m.rng.Intn(hi-lo+1)
}
