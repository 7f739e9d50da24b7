// Package gridlab is the public facade over the simulation engine: model
// runs, parameter sweeps, persisted results and contact-graph queries
// behind one client.
package gridlab

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"gridlab/internal/collect"
	"gridlab/internal/contact"
	"gridlab/internal/model"
	"gridlab/internal/platform"
	"gridlab/internal/sim"
	"gridlab/internal/storage"

	_ "gridlab/internal/opinion"
	_ "gridlab/internal/sir"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "gridlab.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store
	lab   *platform.Lab

	artifactsDir string
	exportsDir   string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.lab != nil {
		c.lab.Shutdown()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureLab(ctx)
	return err
}

// Kinds lists the registered model kinds.
func (c *Client) Kinds() []string {
	return sim.Kinds()
}

type RunRequest struct {
	Kind             string
	Params           map[string]any
	Seed             int64
	Steps            int
	CollectionPeriod int
}

type RunSummary struct {
	RunID   string
	Kind    string
	Seed    int64
	Steps   int
	Rows    int
	Columns []string
	Final   map[string]float64
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Kind == "" {
		return RunSummary{}, errors.New("model kind is required")
	}
	if req.Steps <= 0 {
		req.Steps = 100
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	lab, err := c.ensureLab(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	outcome, err := lab.RunModel(ctx, platform.RunSpec{
		Kind:             req.Kind,
		Params:           sim.Params(req.Params),
		Seed:             req.Seed,
		MaxSteps:         req.Steps,
		CollectionPeriod: req.CollectionPeriod,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:   outcome.RunID,
		Kind:    outcome.Kind,
		Seed:    outcome.Seed,
		Steps:   outcome.Steps,
		Rows:    len(outcome.Rows),
		Columns: outcome.Columns,
	}
	if len(outcome.Rows) > 0 {
		summary.Final = outcome.Rows[len(outcome.Rows)-1].Values
	}
	return summary, nil
}

type BatchRequest struct {
	Kind             string
	Params           map[string]any
	Iterations       int
	Steps            int
	CollectionPeriod int
	BaseSeed         int64
	Workers          int
	Notes            string
}

type BatchSummary struct {
	BatchID      string
	Kind         string
	Combinations int
	Runs         int
	Failures     int
	TotalRows    int
	RunIDs       []string
}

func (c *Client) Batch(ctx context.Context, req BatchRequest) (BatchSummary, error) {
	if req.Kind == "" {
		return BatchSummary{}, errors.New("model kind is required")
	}
	if req.Iterations <= 0 {
		req.Iterations = 1
	}
	if req.Steps <= 0 {
		req.Steps = 100
	}
	if req.BaseSeed == 0 {
		req.BaseSeed = time.Now().UnixNano()
	}

	lab, err := c.ensureLab(ctx)
	if err != nil {
		return BatchSummary{}, err
	}

	result, err := lab.RunBatch(ctx, platform.BatchSpec{
		Kind:             req.Kind,
		Params:           req.Params,
		Iterations:       req.Iterations,
		MaxSteps:         req.Steps,
		CollectionPeriod: req.CollectionPeriod,
		BaseSeed:         req.BaseSeed,
		Workers:          req.Workers,
		Notes:            req.Notes,
	})
	if err != nil {
		return BatchSummary{}, err
	}

	summary := BatchSummary{
		BatchID:      result.BatchID,
		Kind:         result.Kind,
		Combinations: len(result.Combinations),
		Runs:         len(result.Runs),
		Failures:     len(result.Failures),
		TotalRows:    result.TotalRows(),
	}
	for _, run := range result.Runs {
		summary.RunIDs = append(summary.RunIDs, run.RunID)
	}
	return summary, nil
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Kind         string
	Seed         int64
	Steps        int
	CreatedAtUTC string
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	lab, err := c.ensureLab(ctx)
	if err != nil {
		return nil, err
	}
	records, err := lab.Store().ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	// Newest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if len(records) > req.Limit {
		records = records[:req.Limit]
	}

	out := make([]RunItem, 0, len(records))
	for _, r := range records {
		out = append(out, RunItem{
			RunID:        r.ID,
			Kind:         r.Kind,
			Seed:         r.Seed,
			Steps:        r.Steps,
			CreatedAtUTC: r.CreatedAtUTC,
		})
	}
	return out, nil
}

// Table returns a persisted run's collected rows as a table file value.
func (c *Client) Table(ctx context.Context, runID string) (collect.TableFile, error) {
	if runID == "" {
		return collect.TableFile{}, errors.New("run id is required")
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return collect.TableFile{}, err
	}

	rows, ok, err := lab.Store().GetModelRows(ctx, runID)
	if err != nil {
		return collect.TableFile{}, err
	}
	if !ok {
		return collect.TableFile{}, fmt.Errorf("run not found: %s", runID)
	}
	agentRows, _, err := lab.Store().GetAgentRows(ctx, runID)
	if err != nil {
		return collect.TableFile{}, err
	}

	return collect.TableFile{
		Columns:      columnsOf(rows),
		AgentColumns: agentColumnsOf(agentRows),
		Rows:         rows,
		AgentRows:    agentRows,
	}, nil
}

// ContactEdges returns a persisted run's contact graph as a sorted edge
// list.
func (c *Client) ContactEdges(ctx context.Context, runID string) ([]contact.Edge, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return nil, err
	}

	ledgers, ok, err := lab.Store().GetLedgers(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no contact ledgers for run: %s", runID)
	}
	return contact.Edges(ledgers)
}

// ContactGraphSummary describes the weighted contact graph of one run.
type ContactGraphSummary struct {
	Nodes   int
	Edges   int
	Degrees map[int]float64
}

// ContactGraph builds the weighted undirected contact graph for a persisted
// run and summarizes it: node and edge counts plus each agent's weighted
// degree.
func (c *Client) ContactGraph(ctx context.Context, runID string) (ContactGraphSummary, error) {
	if runID == "" {
		return ContactGraphSummary{}, errors.New("run id is required")
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return ContactGraphSummary{}, err
	}

	ledgers, ok, err := lab.Store().GetLedgers(ctx, runID)
	if err != nil {
		return ContactGraphSummary{}, err
	}
	if !ok {
		return ContactGraphSummary{}, fmt.Errorf("no contact ledgers for run: %s", runID)
	}
	g, err := contact.BuildGraph(ledgers)
	if err != nil {
		return ContactGraphSummary{}, err
	}
	return ContactGraphSummary{
		Nodes:   g.Nodes().Len(),
		Edges:   g.Edges().Len(),
		Degrees: contact.Degree(ledgers),
	}, nil
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// Export writes one run's table to disk as JSON under the exports
// directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		items, err := c.Runs(ctx, RunsRequest{Limit: 1})
		if err != nil {
			return ExportSummary{}, err
		}
		if len(items) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = items[0].RunID
	}

	table, err := c.Table(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	dir := filepath.Join(req.OutDir, runID)
	if err := collect.WriteTableFile(filepath.Join(dir, "table.json"), table); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) PauseRun(ctx context.Context, runID string) error {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	return lab.PauseRun(runID)
}

func (c *Client) ContinueRun(ctx context.Context, runID string) error {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	return lab.ContinueRun(runID)
}

func (c *Client) StopRun(ctx context.Context, runID string) error {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	return lab.StopRun(runID)
}

func (c *Client) ensureLab(ctx context.Context) (*platform.Lab, error) {
	if c.lab != nil && c.lab.Started() {
		return c.lab, nil
	}
	lab := platform.NewLab(platform.Config{
		Store:        c.store,
		ArtifactsDir: c.artifactsDir,
	})
	if err := lab.Init(ctx); err != nil {
		return nil, err
	}
	c.lab = lab
	return c.lab, nil
}

func columnsOf(rows []model.ModelRow) []string {
	if len(rows) == 0 {
		return nil
	}
	columns := make([]string, 0, len(rows[0].Values))
	for name := range rows[0].Values {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}

func agentColumnsOf(rows []model.AgentRow) []string {
	if len(rows) == 0 {
		return nil
	}
	columns := make([]string, 0, len(rows[0].Values))
	for name := range rows[0].Values {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}
