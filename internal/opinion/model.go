// Package opinion implements a bounded-confidence opinion-dynamics model on
// a 2D lattice. Agents carry a scalar opinion in [-1, 1] and, on each
// activation, pick one co-located peer; if the opinions differ by less than
// epsilon both move a configured fraction toward their midpoint.
package opinion

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gridlab/internal/collect"
	"gridlab/internal/grid"
	"gridlab/internal/model"
	"gridlab/internal/schedule"
	"gridlab/internal/sim"
)

const Kind = "opinion"

// clusterGap is the sorted-opinion gap above which two opinions are counted
// as belonging to distinct clusters.
const clusterGap = 0.05

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
	id      int
	opinion float64
	ledger  map[int]int

	m *Model
}

func (a *agent) ID() int { return a.id }

// Step runs one activation: move, then average with one random co-located
// peer when within the confidence bound. Both sides move the same fraction
// toward the midpoint, so the population mean is conserved.
func (a *agent) Step(_ context.Context) error {
	pos, ok := a.m.grid.PositionOf(a.id)
	if !ok {
		return fmt.Errorf("agent %d is not placed", a.id)
	}
	next := a.m.grid.RandomCellNear(a.m.rng, pos, a.m.cfg.MaxAgentStepSize)
	if err := a.m.grid.Place(a.id, next); err != nil {
		return err
	}

	peers := a.m.grid.CellmatesOf(a.id)
	if len(peers) == 0 {
		return nil
	}
	peer := a.m.agents[peers[a.m.rng.Intn(len(peers))]]
	a.ledger[peer.id]++
	peer.ledger[a.id]++

	if math.Abs(a.opinion-peer.opinion) >= a.m.cfg.Epsilon {
		return nil
	}
	mu := a.m.cfg.ConvergenceRate
	delta := peer.opinion - a.opinion
	a.opinion += mu * delta
	peer.opinion -= mu * delta
	return nil
}

// Model composes the grid, a random-activation scheduler and the opinion
// agent population.
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
			id: id,
			// Uniform initial opinion in [-1, 1).
			opinion: 2*rng.Float64() - 1,
			ledger:  make(map[int]int),
			m:       m,
		}
		if err := g.Place(id, g.RandomCell(rng)); err != nil {
			return nil, err
		}
		if err := m.sched.Add(a); err != nil {
			return nil, err
		}
		m.agents[id] = a
	}

	collector, err := collect.New(map[string]collect.ModelReporter{
		"opinion_mean":   m.meanOpinion,
		"opinion_spread": m.opinionSpread,
		"cluster_count":  func() float64 { return float64(m.ClusterCount(clusterGap)) },
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
	return []string{"opinion"}
}

func (m *Model) agentReporter() collect.AgentReporter {
	if !m.cfg.TrackAgents {
		return nil
	}
	return func(step int) []model.AgentRow {
		rows := make([]model.AgentRow, 0, len(m.agents))
		for _, id := range m.AgentIDs() {
			rows = append(rows, model.AgentRow{
				Step:    step,
				AgentID: id,
				Values:  map[string]float64{"opinion": m.agents[id].opinion},
			})
		}
		return rows
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

func (m *Model) AgentIDs() []int {
	ids := make([]int, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OpinionOf returns the current opinion of an agent.
func (m *Model) OpinionOf(id int) (float64, bool) {
	a, ok := m.agents[id]
	if !ok {
		return 0, false
	}
	return a.opinion, true
}

// Opinions returns every agent's opinion keyed by agent ID.
func (m *Model) Opinions() map[int]float64 {
	out := make(map[int]float64, len(m.agents))
	for id, a := range m.agents {
		out[id] = a.opinion
	}
	return out
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
// agent ID.
func (m *Model) Ledgers() map[int]map[int]int {
	out := make(map[int]map[int]int, len(m.agents))
	for id := range m.agents {
		ledger, _ := m.Ledger(id)
		out[id] = ledger
	}
	return out
}

func (m *Model) meanOpinion() float64 {
	sum := 0.0
	for _, a := range m.agents {
		sum += a.opinion
	}
	return sum / float64(len(m.agents))
}

// opinionSpread is the range of the opinion distribution, max minus min.
func (m *Model) opinionSpread() float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, a := range m.agents {
		lo = math.Min(lo, a.opinion)
		hi = math.Max(hi, a.opinion)
	}
	return hi - lo
}

// ClusterCount counts opinion clusters by sorting the opinions and splitting
// wherever consecutive values are more than gap apart.
func (m *Model) ClusterCount(gap float64) int {
	if len(m.agents) == 0 {
		return 0
	}
	opinions := make([]float64, 0, len(m.agents))
	for _, a := range m.agents {
		opinions = append(opinions, a.opinion)
	}
	sort.Float64s(opinions)

	clusters := 1
	for i := 1; i < len(opinions); i++ {
		if opinions[i]-opinions[i-1] > gap {
			clusters++
		}
	}
	return clusters
}
