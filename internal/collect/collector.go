package collect

import (
	"fmt"
	"sort"

	"gridlab/internal/model"
)

// ModelReporter produces one model-level observable value.
type ModelReporter func() float64

// AgentReporter produces one row per agent for the given step.
type AgentReporter func(step int) []model.AgentRow

// Collector records model-level aggregates and, optionally, agent-level rows
// at each collection step. The accumulated tables are append-only and
// step-indexed; prior rows are never rewritten. The collector is the sole
// owner of its tables.
type Collector struct {
	columns      []string
	agentColumns []string
	reporters    map[string]ModelReporter
	agents       AgentReporter

	rows      []model.ModelRow
	agentRows []model.AgentRow
	lastStep  int
}

// New builds a collector over the given model reporters. Column order is the
// sorted reporter names. agentColumns and agents may be nil when agent-level
// tracking is disabled.
func New(reporters map[string]ModelReporter, agentColumns []string, agents AgentReporter) (*Collector, error) {
	if len(reporters) == 0 {
		return nil, fmt.Errorf("at least one model reporter is required")
	}
	columns := make([]string, 0, len(reporters))
	for name, fn := range reporters {
		if fn == nil {
			return nil, fmt.Errorf("reporter %s is nil", name)
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return &Collector{
		columns:      columns,
		agentColumns: append([]string(nil), agentColumns...),
		reporters:    reporters,
		agents:       agents,
		lastStep:     -1,
	}, nil
}

// Collect appends one model-level row and, when agent tracking is enabled,
// one row per agent. Steps at or before the last collected step are ignored,
// preserving the append-only, step-ascending table.
func (c *Collector) Collect(step int) {
	if step <= c.lastStep {
		return
	}
	c.lastStep = step

	values := make(map[string]float64, len(c.columns))
	for _, name := range c.columns {
		values[name] = c.reporters[name]()
	}
	c.rows = append(c.rows, model.ModelRow{Step: step, Values: values})

	if c.agents != nil {
		c.agentRows = append(c.agentRows, c.agents(step)...)
	}
}

// Columns returns the model-level column names, in table order.
func (c *Collector) Columns() []string {
	return append([]string(nil), c.columns...)
}

// AgentColumns returns the agent-level column names, in table order.
func (c *Collector) AgentColumns() []string {
	return append([]string(nil), c.agentColumns...)
}

// Rows materializes the accumulated model-level table.
func (c *Collector) Rows() []model.ModelRow {
	out := make([]model.ModelRow, len(c.rows))
	copy(out, c.rows)
	return out
}

// AgentRows materializes the accumulated agent-level table.
func (c *Collector) AgentRows() []model.AgentRow {
	out := make([]model.AgentRow, len(c.agentRows))
	copy(out, c.agentRows)
	return out
}

// LastStep returns the most recently collected step, or -1 before the first
// collection.
func (c *Collector) LastStep() int {
	return c.lastStep
}
