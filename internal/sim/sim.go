package sim

import (
	"context"
	"errors"

	"gridlab/internal/collect"
)

// ErrConfiguration reports a model parameter outside its domain. It is
// surfaced at construction and is fatal to that run.
var ErrConfiguration = errors.New("invalid configuration")

// Model is one simulation instance: a grid, a scheduler, a population of
// agents and a collector, advanced tick by tick. A tick fully completes
// before the next begins; nothing inside a tick yields to another tick.
type Model interface {
	Kind() string

	// Tick advances the model by one synchronized step: every agent is
	// activated exactly once, in a fresh random order.
	Tick(ctx context.Context) error

	// Collect snapshots the model into the collector for the given step.
	Collect(step int)

	Collector() *collect.Collector
}

// Command steers a running instance. Commands are applied between ticks,
// never mid-tick.
type Command string

const (
	CommandPause    Command = "pause"
	CommandContinue Command = "continue"
	CommandStop     Command = "stop"
)
