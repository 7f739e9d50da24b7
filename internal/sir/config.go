package sir

import (
	"fmt"

	"gridlab/internal/grid"
	"gridlab/internal/sim"
)

// Config is the immutable configuration of one SIR run. It is validated at
// construction and never mutated afterwards.
type Config struct {
	Population         int
	Width              int
	Height             int
	Torus              bool
	Metric             grid.Metric
	InfectionRate      float64
	RecoveryTimeRange  [2]int
	MaxAgentStepSize   int
	NInitialInfections int
	TrackAgents        bool
}

func DefaultConfig() Config {
	return Config{
		Population:         100,
		Width:              20,
		Height:             20,
		InfectionRate:      0.3,
		RecoveryTimeRange:  [2]int{5, 15},
		MaxAgentStepSize:   1,
		NInitialInfections: 1,
	}
}

func (c Config) Validate() error {
	if c.Population <= 0 {
		return fmt.Errorf("%w: population must be positive, got %d", sim.ErrConfiguration, c.Population)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", sim.ErrConfiguration, c.Width, c.Height)
	}
	if c.InfectionRate < 0 || c.InfectionRate > 1 {
		return fmt.Errorf("%w: infection rate must be in [0,1], got %g", sim.ErrConfiguration, c.InfectionRate)
	}
	if c.RecoveryTimeRange[0] < 0 || c.RecoveryTimeRange[1] < c.RecoveryTimeRange[0] {
		return fmt.Errorf("%w: recovery time range must satisfy 0 <= lower <= upper, got [%d,%d]",
			sim.ErrConfiguration, c.RecoveryTimeRange[0], c.RecoveryTimeRange[1])
	}
	if c.MaxAgentStepSize < 0 {
		return fmt.Errorf("%w: max agent step size must be >= 0, got %d", sim.ErrConfiguration, c.MaxAgentStepSize)
	}
	if c.NInitialInfections < 0 || c.NInitialInfections > c.Population {
		return fmt.Errorf("%w: initial infections must be in [0, population], got %d",
			sim.ErrConfiguration, c.NInitialInfections)
	}
	return nil
}

// ParamNames is the configuration schema exposed to batch sweeps.
var ParamNames = []string{
	"population",
	"width",
	"height",
	"torus",
	"metric",
	"infection_rate",
	"recovery_time_min",
	"recovery_time_max",
	"max_step_size",
	"n_initial_infections",
	"track_agents",
}

// ConfigFromParams applies a parameter bag on top of the default
// configuration. Unknown parameter names are rejected.
func ConfigFromParams(params sim.Params) (Config, error) {
	cfg := DefaultConfig()
	known := make(map[string]struct{}, len(ParamNames))
	for _, name := range ParamNames {
		known[name] = struct{}{}
	}
	for name := range params {
		if _, ok := known[name]; !ok {
			return Config{}, fmt.Errorf("%w: unknown sir parameter: %s", sim.ErrConfiguration, name)
		}
	}

	if v, ok, err := params.Int("population"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Population = v
	}
	if v, ok, err := params.Int("width"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Width = v
	}
	if v, ok, err := params.Int("height"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Height = v
	}
	if v, ok, err := params.Bool("torus"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Torus = v
	}
	if v, ok, err := params.String("metric"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Metric = grid.Metric(v)
	}
	if v, ok, err := params.Float64("infection_rate"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.InfectionRate = v
	}
	if v, ok, err := params.Int("recovery_time_min"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.RecoveryTimeRange[0] = v
	}
	if v, ok, err := params.Int("recovery_time_max"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.RecoveryTimeRange[1] = v
	}
	if v, ok, err := params.Int("max_step_size"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.MaxAgentStepSize = v
	}
	if v, ok, err := params.Int("n_initial_infections"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.NInitialInfections = v
	}
	if v, ok, err := params.Bool("track_agents"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.TrackAgents = v
	}
	return cfg, nil
}
