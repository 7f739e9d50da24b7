package sim

import (
	"context"
	"fmt"
)

// RunConfig drives one model instance.
type RunConfig struct {
	MaxSteps int
	// CollectionPeriod is the tick interval between collections; 0 or 1
	// collects every tick. The initial state is always collected as step 0.
	CollectionPeriod int
	// Control optionally steers the run with pause/continue/stop commands,
	// checked between ticks.
	Control <-chan Command
}

// Run advances the model MaxSteps ticks, collecting the initial state and
// then every CollectionPeriod ticks. It returns the number of completed
// ticks; on cancellation or a tick error the count covers only fully
// completed ticks. A stop command ends the run cleanly.
func Run(ctx context.Context, m Model, cfg RunConfig) (int, error) {
	if m == nil {
		return 0, fmt.Errorf("model is required")
	}
	if cfg.MaxSteps <= 0 {
		return 0, fmt.Errorf("max steps must be > 0")
	}
	period := cfg.CollectionPeriod
	if period <= 0 {
		period = 1
	}

	m.Collect(0)
	for step := 1; step <= cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return step - 1, err
		}
		stopped, err := applyControl(ctx, cfg.Control)
		if err != nil {
			return step - 1, err
		}
		if stopped {
			return step - 1, nil
		}

		if err := m.Tick(ctx); err != nil {
			return step - 1, fmt.Errorf("tick %d: %w", step, err)
		}
		if step%period == 0 {
			m.Collect(step)
		}
	}
	return cfg.MaxSteps, nil
}

// applyControl drains pending commands without blocking; a pause blocks
// until the matching continue, stop, or cancellation.
func applyControl(ctx context.Context, control <-chan Command) (bool, error) {
	if control == nil {
		return false, nil
	}
	for {
		select {
		case cmd := <-control:
			switch cmd {
			case CommandStop:
				return true, nil
			case CommandPause:
				stopped, err := awaitContinue(ctx, control)
				if stopped || err != nil {
					return stopped, err
				}
			case CommandContinue:
				// Not paused; ignore.
			}
		default:
			return false, nil
		}
	}
}

func awaitContinue(ctx context.Context, control <-chan Command) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case cmd := <-control:
			switch cmd {
			case CommandContinue:
				return false, nil
			case CommandStop:
				return true, nil
			case CommandPause:
				// Already paused; ignore.
			}
		}
	}
}

// ExpectedRows returns the number of model-level rows one instance produces
// for the given run configuration: the step-0 snapshot plus one row per
// collection period boundary.
func ExpectedRows(maxSteps, collectionPeriod int) int {
	if collectionPeriod <= 0 {
		collectionPeriod = 1
	}
	if maxSteps < 0 {
		maxSteps = 0
	}
	return maxSteps/collectionPeriod + 1
}
