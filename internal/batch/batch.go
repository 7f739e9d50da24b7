// Package batch expands a parameter specification into its Cartesian
// product of combinations and runs independent model instances for each,
// aggregating every instance's collected rows under a unique run ID.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"gridlab/internal/model"
	"gridlab/internal/sim"
)

// ErrInvalidParamSpec marks a sweep that references a parameter name the
// target model kind does not recognize. It fails the batch before any
// instance runs.
var ErrInvalidParamSpec = errors.New("invalid parameter specification")

// Request describes one parameter sweep. Params maps a parameter name to
// either a fixed value or a slice of candidate values; slice-valued
// parameters are enumerated, fixed ones are held constant across all
// combinations.
type Request struct {
	Kind string
	// BatchID optionally fixes the batch identifier, letting the caller
	// announce the batch before it runs; empty draws a fresh one.
	BatchID          string
	Params           map[string]any
	Iterations       int
	MaxSteps         int
	CollectionPeriod int
	BaseSeed         int64
	// Workers bounds instance concurrency; 0 or 1 runs sequentially.
	Workers int
}

func (r Request) validate() error {
	if r.Kind == "" {
		return fmt.Errorf("model kind is required")
	}
	if r.Iterations <= 0 {
		return fmt.Errorf("iterations must be > 0, got %d", r.Iterations)
	}
	if r.MaxSteps <= 0 {
		return fmt.Errorf("max steps must be > 0, got %d", r.MaxSteps)
	}
	return nil
}

// Combination is one fully resolved point of the parameter space.
type Combination struct {
	Index  int        `json:"index"`
	Params sim.Params `json:"params"`
}

// RunResult holds one instance's output rows tagged with its run ID.
type RunResult struct {
	RunID       string              `json:"run_id"`
	Kind        string              `json:"kind"`
	Combination int                 `json:"combination"`
	Iteration   int                 `json:"iteration"`
	Seed        int64               `json:"seed"`
	Params      sim.Params          `json:"params"`
	Steps       int                 `json:"steps"`
	Rows        []model.ModelRow    `json:"rows"`
	AgentRows   []model.AgentRow    `json:"agent_rows,omitempty"`
	Columns     []string            `json:"columns"`
	Ledgers     map[int]map[int]int `json:"-"`
}

// Failure identifies an instance whose run failed. Its partial rows are
// discarded; other instances are unaffected.
type Failure struct {
	Combination int        `json:"combination"`
	Iteration   int        `json:"iteration"`
	Params      sim.Params `json:"params"`
	Err         string     `json:"error"`
}

// Result aggregates a whole batch. Runs and Failures are ordered by
// (combination, iteration) regardless of worker scheduling.
type Result struct {
	BatchID      string        `json:"batch_id"`
	Kind         string        `json:"kind"`
	Combinations []Combination `json:"combinations"`
	Runs         []RunResult   `json:"runs"`
	Failures     []Failure     `json:"failures,omitempty"`
}

// TotalRows is the model-level row count across all successful runs.
func (r Result) TotalRows() int {
	total := 0
	for _, run := range r.Runs {
		total += len(run.Rows)
	}
	return total
}

// Expand enumerates the Cartesian product of the specification against a
// model definition's parameter schema. Combination order is deterministic:
// parameter names sorted lexicographically, candidate values in declared
// order, last name varying fastest.
func Expand(def sim.Definition, spec map[string]any) ([]Combination, error) {
	known := make(map[string]struct{}, len(def.ParamNames))
	for _, name := range def.ParamNames {
		known[name] = struct{}{}
	}

	names := make([]string, 0, len(spec))
	for name := range spec {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%w: model kind %s does not accept parameter %s",
				ErrInvalidParamSpec, def.Kind, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([][]any, len(names))
	for i, name := range names {
		vals := candidates(spec[name])
		if len(vals) == 0 {
			return nil, fmt.Errorf("%w: parameter %s has no candidate values", ErrInvalidParamSpec, name)
		}
		values[i] = vals
	}

	total := 1
	for _, vals := range values {
		total *= len(vals)
	}

	combos := make([]Combination, 0, total)
	indices := make([]int, len(names))
	for c := 0; c < total; c++ {
		params := make(sim.Params, len(names))
		for i, name := range names {
			params[name] = values[i][indices[i]]
		}
		combos = append(combos, Combination{Index: c, Params: params})

		for i := len(indices) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(values[i]) {
				break
			}
			indices[i] = 0
		}
	}
	return combos, nil
}

// candidates normalizes a spec value into its candidate list. Slices
// enumerate; any other value is a single fixed candidate.
func candidates(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []int:
		out := make([]any, len(vals))
		for i, x := range vals {
			out[i] = x
		}
		return out
	case []float64:
		out := make([]any, len(vals))
		for i, x := range vals {
			out[i] = x
		}
		return out
	case []string:
		out := make([]any, len(vals))
		for i, x := range vals {
			out[i] = x
		}
		return out
	case []bool:
		out := make([]any, len(vals))
		for i, x := range vals {
			out[i] = x
		}
		return out
	default:
		return []any{v}
	}
}

type ledgerSource interface {
	Ledgers() map[int]map[int]int
}

// Run executes the batch: every combination times Iterations independent
// instances, each with its own model, grid, scheduler and collector, seeded
// BaseSeed plus the instance index. A failing instance is reported in
// Failures with its rows discarded; the rest of the batch continues.
// Cancellation is honored between ticks and aborts the whole batch.
func Run(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	def, ok := sim.Lookup(req.Kind)
	if !ok {
		return Result{}, fmt.Errorf("unknown model kind: %s", req.Kind)
	}
	combos, err := Expand(def, req.Params)
	if err != nil {
		return Result{}, err
	}

	type job struct {
		idx       int
		combo     Combination
		iteration int
	}

	totalInstances := len(combos) * req.Iterations
	jobs := make(chan job)
	results := make(chan outcome, totalInstances)

	workerCount := req.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > totalInstances {
		workerCount = totalInstances
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- outcome{idx: j.idx, err: err}
					continue
				}
				results <- runInstance(ctx, def, req, j.idx, j.combo, j.iteration)
			}
		}()
	}

	idx := 0
	for _, combo := range combos {
		for iteration := 0; iteration < req.Iterations; iteration++ {
			jobs <- job{idx: idx, combo: combo, iteration: iteration}
			idx++
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	ordered := make([]outcome, totalInstances)
	for out := range results {
		ordered[out.idx] = out
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	result := Result{
		BatchID:      batchID,
		Kind:         req.Kind,
		Combinations: combos,
	}
	for _, out := range ordered {
		switch {
		case out.err != nil:
			return Result{}, out.err
		case out.failure != nil:
			result.Failures = append(result.Failures, *out.failure)
		default:
			result.Runs = append(result.Runs, out.run)
		}
	}
	return result, nil
}

type outcome struct {
	idx     int
	run     RunResult
	failure *Failure
	err     error
}

func runInstance(ctx context.Context, def sim.Definition, req Request, idx int, combo Combination, iteration int) outcome {
	out := outcome{idx: idx}
	seed := req.BaseSeed + int64(idx)

	fail := func(err error) {
		out.failure = &Failure{
			Combination: combo.Index,
			Iteration:   iteration,
			Params:      combo.Params.Clone(),
			Err:         err.Error(),
		}
	}

	m, err := def.New(combo.Params.Clone(), seed)
	if err != nil {
		fail(err)
		return out
	}
	steps, err := sim.Run(ctx, m, sim.RunConfig{
		MaxSteps:         req.MaxSteps,
		CollectionPeriod: req.CollectionPeriod,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			out.err = err
			return out
		}
		fail(err)
		return out
	}

	run := RunResult{
		RunID:       uuid.NewString(),
		Kind:        def.Kind,
		Combination: combo.Index,
		Iteration:   iteration,
		Seed:        seed,
		Params:      combo.Params.Clone(),
		Steps:       steps,
		Rows:        m.Collector().Rows(),
		AgentRows:   m.Collector().AgentRows(),
		Columns:     m.Collector().Columns(),
	}
	if src, ok := m.(ledgerSource); ok {
		run.Ledgers = src.Ledgers()
	}
	out.run = run
	return out
}
