// Package platform hosts the Lab, the long-lived service that owns the
// store, executes runs and sweeps, persists their results and steers
// in-flight runs through pause/continue/stop commands.
package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridlab/internal/batch"
	"gridlab/internal/model"
	"gridlab/internal/sim"
	"gridlab/internal/stats"
	"gridlab/internal/storage"
)

type Config struct {
	Store storage.Store
	// ArtifactsDir, when set, receives a JSON experiment artifact per batch.
	ArtifactsDir string
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

type Lab struct {
	store        storage.Store
	artifactsDir string

	mu             sync.RWMutex
	started        bool
	lastStopReason StopReason
	runs           map[string]chan sim.Command

	config Config
}

var (
	defaultLabMu sync.Mutex
	defaultLab   *Lab
)

func NewLab(cfg Config) *Lab {
	return &Lab{
		store:          cfg.Store,
		artifactsDir:   cfg.ArtifactsDir,
		runs:           make(map[string]chan sim.Command),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func StartDefault(ctx context.Context, cfg Config) (*Lab, error) {
	defaultLabMu.Lock()
	defer defaultLabMu.Unlock()

	if defaultLab != nil && defaultLab.Started() {
		return defaultLab, nil
	}

	l := NewLab(cfg)
	if err := l.Init(ctx); err != nil {
		return nil, err
	}
	defaultLab = l
	return defaultLab, nil
}

func Default() (*Lab, bool) {
	defaultLabMu.Lock()
	l := defaultLab
	defaultLabMu.Unlock()

	if l == nil || !l.Started() {
		return nil, false
	}
	return l, true
}

func StopDefault(reason StopReason) error {
	defaultLabMu.Lock()
	l := defaultLab
	defaultLabMu.Unlock()
	if l == nil {
		return nil
	}
	if err := l.StopWithReason(reason); err != nil {
		return err
	}
	defaultLabMu.Lock()
	if defaultLab == l {
		defaultLab = nil
	}
	defaultLabMu.Unlock()
	return nil
}

func (l *Lab) Init(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("store is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := l.store.Init(ctx); err != nil {
		return err
	}
	l.started = true
	return nil
}

func (l *Lab) Reset(ctx context.Context) error {
	_ = l.StopWithReason(StopReasonShutdown)
	if resetter, ok := l.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return l.Init(ctx)
}

func (l *Lab) Stop() {
	_ = l.StopWithReason(StopReasonNormal)
}

func (l *Lab) Shutdown() {
	_ = l.StopWithReason(StopReasonShutdown)
}

func (l *Lab) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if reason != StopReasonNormal && reason != StopReasonShutdown {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, control := range l.runs {
		select {
		case control <- sim.CommandStop:
		default:
		}
	}
	l.started = false
	l.lastStopReason = reason
	l.runs = make(map[string]chan sim.Command)
	return nil
}

func (l *Lab) Started() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

func (l *Lab) LastStopReason() StopReason {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastStopReason
}

func (l *Lab) Store() storage.Store {
	return l.store
}

// RunSpec drives one interactive model run.
type RunSpec struct {
	RunID            string
	Kind             string
	Params           sim.Params
	Seed             int64
	MaxSteps         int
	CollectionPeriod int
	// Control optionally supplies an external command channel; when nil the
	// Lab allocates one so PauseRun/ContinueRun/StopRun work by run ID.
	Control chan sim.Command
}

// RunOutcome is the persisted result of one run.
type RunOutcome struct {
	RunID     string
	Kind      string
	Seed      int64
	Steps     int
	Columns   []string
	Rows      []model.ModelRow
	AgentRows []model.AgentRow
}

// RunModel executes one model instance to completion, persisting its record,
// its collected rows and, for models that track contacts, its ledgers.
func (l *Lab) RunModel(ctx context.Context, spec RunSpec) (RunOutcome, error) {
	if !l.Started() {
		return RunOutcome{}, fmt.Errorf("lab is not initialized")
	}
	def, ok := sim.Lookup(spec.Kind)
	if !ok {
		return RunOutcome{}, fmt.Errorf("unknown model kind: %s", spec.Kind)
	}

	runID := spec.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	control := spec.Control
	if control == nil {
		control = make(chan sim.Command, 16)
	}
	if err := l.registerRunControl(runID, control); err != nil {
		return RunOutcome{}, err
	}
	defer l.unregisterRunControl(runID)

	m, err := def.New(spec.Params.Clone(), spec.Seed)
	if err != nil {
		return RunOutcome{}, err
	}
	steps, err := sim.Run(ctx, m, sim.RunConfig{
		MaxSteps:         spec.MaxSteps,
		CollectionPeriod: spec.CollectionPeriod,
		Control:          control,
	})
	if err != nil {
		return RunOutcome{}, fmt.Errorf("run %s: %w", runID, err)
	}

	outcome := RunOutcome{
		RunID:     runID,
		Kind:      spec.Kind,
		Seed:      spec.Seed,
		Steps:     steps,
		Columns:   m.Collector().Columns(),
		Rows:      m.Collector().Rows(),
		AgentRows: m.Collector().AgentRows(),
	}
	if err := l.persistRun(ctx, outcome, spec.Params, ledgersOf(m)); err != nil {
		return RunOutcome{}, err
	}
	return outcome, nil
}

// BatchSpec drives one parameter sweep through the Lab.
type BatchSpec struct {
	Kind             string
	Params           map[string]any
	Iterations       int
	MaxSteps         int
	CollectionPeriod int
	BaseSeed         int64
	Workers          int
	Notes            string
}

// RunBatch executes a sweep, persists every successful instance and the
// batch record, and writes an experiment artifact when an artifacts
// directory is configured.
func (l *Lab) RunBatch(ctx context.Context, spec BatchSpec) (batch.Result, error) {
	if !l.Started() {
		return batch.Result{}, fmt.Errorf("lab is not initialized")
	}
	startedAt := time.Now().UTC().Format(time.RFC3339)

	// When artifacts are enabled the batch is announced up front, so an
	// aborted sweep leaves an in-progress artifact behind.
	var batchID string
	if l.artifactsDir != "" {
		batchID = uuid.NewString()
		if err := stats.WriteExperiment(l.artifactsDir, stats.Experiment{
			ID:           batchID,
			Kind:         spec.Kind,
			Notes:        spec.Notes,
			ProgressFlag: stats.ProgressInProgress,
			Iterations:   spec.Iterations,
			StartedAtUTC: startedAt,
			Params:       spec.Params,
		}); err != nil {
			return batch.Result{}, err
		}
	}

	result, err := batch.Run(ctx, batch.Request{
		Kind:             spec.Kind,
		BatchID:          batchID,
		Params:           spec.Params,
		Iterations:       spec.Iterations,
		MaxSteps:         spec.MaxSteps,
		CollectionPeriod: spec.CollectionPeriod,
		BaseSeed:         spec.BaseSeed,
		Workers:          spec.Workers,
	})
	if err != nil {
		return batch.Result{}, err
	}

	runIDs := make([]string, 0, len(result.Runs))
	for _, run := range result.Runs {
		outcome := RunOutcome{
			RunID:     run.RunID,
			Kind:      run.Kind,
			Seed:      run.Seed,
			Steps:     run.Steps,
			Columns:   run.Columns,
			Rows:      run.Rows,
			AgentRows: run.AgentRows,
		}
		if err := l.persistRun(ctx, outcome, run.Params, run.Ledgers); err != nil {
			return batch.Result{}, err
		}
		runIDs = append(runIDs, run.RunID)
	}

	record := model.BatchRecord{
		VersionedRecord: versioned(),
		ID:              result.BatchID,
		Kind:            result.Kind,
		Combinations:    len(result.Combinations),
		Iterations:      spec.Iterations,
		RunIDs:          runIDs,
		CreatedAtUTC:    startedAt,
	}
	if err := l.store.SaveBatch(ctx, record); err != nil {
		return batch.Result{}, err
	}

	if l.artifactsDir != "" {
		if err := l.writeExperiment(spec, result, startedAt); err != nil {
			return batch.Result{}, err
		}
	}
	return result, nil
}

func (l *Lab) writeExperiment(spec BatchSpec, result batch.Result, startedAt string) error {
	exp := stats.Experiment{
		ID:             result.BatchID,
		Kind:           result.Kind,
		Notes:          spec.Notes,
		ProgressFlag:   stats.ProgressCompleted,
		Combinations:   len(result.Combinations),
		Iterations:     spec.Iterations,
		StartedAtUTC:   startedAt,
		CompletedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Params:         spec.Params,
	}
	if len(result.Failures) > 0 {
		exp.ProgressFlag = stats.ProgressFailed
		for _, f := range result.Failures {
			exp.Failures = append(exp.Failures,
				fmt.Sprintf("combination %d iteration %d: %s", f.Combination, f.Iteration, f.Err))
		}
	}
	for _, run := range result.Runs {
		exp.RunIDs = append(exp.RunIDs, run.RunID)
		exp.Summaries = append(exp.Summaries, stats.RunSummary{
			RunID:       run.RunID,
			Combination: run.Combination,
			Iteration:   run.Iteration,
			Seed:        run.Seed,
			Steps:       run.Steps,
			Final:       stats.FinalValues(run.Rows),
		})
	}
	return stats.WriteExperiment(l.artifactsDir, exp)
}

func (l *Lab) persistRun(ctx context.Context, outcome RunOutcome, params sim.Params, ledgers map[int]map[int]int) error {
	record := model.RunRecord{
		VersionedRecord: versioned(),
		ID:              outcome.RunID,
		Kind:            outcome.Kind,
		Params:          params,
		Seed:            outcome.Seed,
		Steps:           outcome.Steps,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := l.store.SaveRun(ctx, record); err != nil {
		return err
	}
	if err := l.store.SaveModelRows(ctx, outcome.RunID, outcome.Rows); err != nil {
		return err
	}
	if len(outcome.AgentRows) > 0 {
		if err := l.store.SaveAgentRows(ctx, outcome.RunID, outcome.AgentRows); err != nil {
			return err
		}
	}
	if ledgers != nil {
		if err := l.store.SaveLedgers(ctx, outcome.RunID, ledgers); err != nil {
			return err
		}
	}
	return nil
}

func ledgersOf(m sim.Model) map[int]map[int]int {
	src, ok := m.(interface{ Ledgers() map[int]map[int]int })
	if !ok {
		return nil
	}
	return src.Ledgers()
}

func versioned() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}

func (l *Lab) PauseRun(runID string) error {
	return l.sendRunCommand(runID, sim.CommandPause)
}

func (l *Lab) ContinueRun(runID string) error {
	return l.sendRunCommand(runID, sim.CommandContinue)
}

func (l *Lab) StopRun(runID string) error {
	return l.sendRunCommand(runID, sim.CommandStop)
}

func (l *Lab) ActiveRuns() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.runs))
	for id := range l.runs {
		ids = append(ids, id)
	}
	return ids
}

func (l *Lab) registerRunControl(runID string, control chan sim.Command) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return fmt.Errorf("lab is not initialized")
	}
	if _, exists := l.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	l.runs[runID] = control
	return nil
}

func (l *Lab) unregisterRunControl(runID string) {
	if runID == "" {
		return
	}
	l.mu.Lock()
	delete(l.runs, runID)
	l.mu.Unlock()
}

func (l *Lab) sendRunCommand(runID string, cmd sim.Command) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	l.mu.RLock()
	control, ok := l.runs[runID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", runID)
	}
}
