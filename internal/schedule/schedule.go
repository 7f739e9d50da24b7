package schedule

import (
	"context"
	"fmt"
	"math/rand"
)

// Agent is a schedulable unit activated once per tick.
type Agent interface {
	ID() int
	Step(ctx context.Context) error
}

// RandomActivation activates every registered agent exactly once per tick in
// a freshly randomized order. No ordering state is kept between ticks.
//
// Step iterates a snapshot of the population taken at tick start: agents
// added during a tick are visited from the next tick on, agents removed
// during a tick are skipped.
type RandomActivation struct {
	rng    *rand.Rand
	agents []Agent
	byID   map[int]Agent
}

func NewRandomActivation(rng *rand.Rand) *RandomActivation {
	return &RandomActivation{
		rng:  rng,
		byID: make(map[int]Agent),
	}
}

func (s *RandomActivation) Add(a Agent) error {
	if a == nil {
		return fmt.Errorf("agent is required")
	}
	if _, exists := s.byID[a.ID()]; exists {
		return fmt.Errorf("duplicate agent id: %d", a.ID())
	}
	s.agents = append(s.agents, a)
	s.byID[a.ID()] = a
	return nil
}

func (s *RandomActivation) Remove(id int) {
	if _, exists := s.byID[id]; !exists {
		return
	}
	delete(s.byID, id)
	for i, a := range s.agents {
		if a.ID() == id {
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
			break
		}
	}
}

func (s *RandomActivation) Len() int {
	return len(s.agents)
}

// Step activates the current population in a new random permutation.
func (s *RandomActivation) Step(ctx context.Context) error {
	snapshot := make([]Agent, len(s.agents))
	copy(snapshot, s.agents)
	s.rng.Shuffle(len(snapshot), func(i, j int) {
		snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
	})

	for _, a := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, alive := s.byID[a.ID()]; !alive {
			continue
		}
		if err := a.Step(ctx); err != nil {
			return fmt.Errorf("step agent %d: %w", a.ID(), err)
		}
	}
	return nil
}
