package opinion

import (
	"fmt"

	"gridlab/internal/grid"
	"gridlab/internal/sim"
)

// Config is the immutable configuration of one bounded-confidence run.
// Opinions live in [-1, 1], so the maximum possible distance between two
// opinions is 2 and Epsilon >= 2 makes every encounter an interaction.
type Config struct {
	Population       int
	Width            int
	Height           int
	Torus            bool
	Metric           grid.Metric
	Epsilon          float64
	ConvergenceRate  float64
	MaxAgentStepSize int
	TrackAgents      bool
}

func DefaultConfig() Config {
	return Config{
		Population:       100,
		Width:            20,
		Height:           20,
		Epsilon:          0.5,
		ConvergenceRate:  0.5,
		MaxAgentStepSize: 1,
	}
}

func (c Config) Validate() error {
	if c.Population <= 0 {
		return fmt.Errorf("%w: population must be positive, got %d", sim.ErrConfiguration, c.Population)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", sim.ErrConfiguration, c.Width, c.Height)
	}
	if c.Epsilon < 0 || c.Epsilon > 2 {
		return fmt.Errorf("%w: epsilon must be in [0,2], got %g", sim.ErrConfiguration, c.Epsilon)
	}
	if c.ConvergenceRate <= 0 || c.ConvergenceRate > 0.5 {
		return fmt.Errorf("%w: convergence rate must be in (0,0.5], got %g", sim.ErrConfiguration, c.ConvergenceRate)
	}
	if c.MaxAgentStepSize < 0 {
		return fmt.Errorf("%w: max agent step size must be >= 0, got %d", sim.ErrConfiguration, c.MaxAgentStepSize)
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
	"epsilon",
	"convergence_rate",
	"max_step_size",
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
			return Config{}, fmt.Errorf("%w: unknown opinion parameter: %s", sim.ErrConfiguration, name)
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
	if v, ok, err := params.Float64("epsilon"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.Epsilon = v
	}
	if v, ok, err := params.Float64("convergence_rate"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.ConvergenceRate = v
	}
	if v, ok, err := params.Int("max_step_size"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.MaxAgentStepSize = v
	}
	if v, ok, err := params.Bool("track_agents"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.TrackAgents = v
	}
	return cfg, nil
}
