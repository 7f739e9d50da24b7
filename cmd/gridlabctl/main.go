package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gridlab/internal/collect"
	"gridlab/internal/contact"
	"gridlab/internal/platform"
	"gridlab/internal/storage"
	"gridlab/pkg/gridlab"
)

const (
	artifactsDir = "artifacts"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "kinds":
		return runKinds(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "batch":
		return runBatch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "table":
		return runTable(ctx, args[1:])
	case "contact-graph":
		return runContactGraph(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func addStoreFlags(fs *flag.FlagSet) (storeKind, dbPath *string) {
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath = fs.String("db-path", "gridlab.db", "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*gridlab.Client, error) {
	return gridlab.New(gridlab.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	lab := platform.NewLab(platform.Config{Store: store})
	if err := lab.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	lab := platform.NewLab(platform.Config{Store: store})
	if err := lab.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runKinds(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("kinds", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit kinds as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	kinds := client.Kinds()
	if *jsonOut {
		return printJSON(kinds)
	}
	for _, kind := range kinds {
		fmt.Println(kind)
	}
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	file := fs.String("file", "", "run request file (yaml or json)")
	kind := fs.String("kind", "", "model kind")
	steps := fs.Int("steps", 100, "ticks to run")
	period := fs.Int("period", 1, "collection period in ticks")
	seed := fs.Int64("seed", 0, "random seed (0 derives one from the clock)")
	params := paramFlags{}
	fs.Var(params, "param", "model parameter as name=value (repeatable)")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := gridlab.RunRequest{
		Kind:             *kind,
		Params:           params,
		Seed:             *seed,
		Steps:            *steps,
		CollectionPeriod: *period,
	}
	if *file != "" {
		loaded, err := loadRunFile(*file)
		if err != nil {
			return err
		}
		req = gridlab.RunRequest{
			Kind:             loaded.Kind,
			Params:           loaded.Params,
			Seed:             loaded.Seed,
			Steps:            loaded.Steps,
			CollectionPeriod: loaded.CollectionPeriod,
		}
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(summary)
	}
	fmt.Printf("run_id=%s kind=%s seed=%d steps=%d rows=%d\n",
		summary.RunID, summary.Kind, summary.Seed, summary.Steps, summary.Rows)
	for _, name := range sortedKeys(summary.Final) {
		fmt.Printf("final %s=%g\n", name, summary.Final[name])
	}
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	file := fs.String("file", "", "sweep request file (yaml or json)")
	jsonOut := fs.Bool("json", false, "emit batch summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return usageError("batch requires -file")
	}

	loaded, err := loadBatchFile(*file)
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Batch(ctx, gridlab.BatchRequest{
		Kind:             loaded.Kind,
		Params:           loaded.Params,
		Iterations:       loaded.Iterations,
		Steps:            loaded.Steps,
		CollectionPeriod: loaded.CollectionPeriod,
		BaseSeed:         loaded.BaseSeed,
		Workers:          loaded.Workers,
		Notes:            loaded.Notes,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(summary)
	}
	fmt.Printf("batch_id=%s kind=%s combinations=%d runs=%d failures=%d rows=%d\n",
		summary.BatchID, summary.Kind, summary.Combinations, summary.Runs,
		summary.Failures, summary.TotalRows)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "maximum runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, gridlab.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(items)
	}
	for _, item := range items {
		fmt.Printf("run_id=%s kind=%s seed=%d steps=%d created=%s\n",
			item.RunID, item.Kind, item.Seed, item.Steps, item.CreatedAtUTC)
	}
	return nil
}

func runTable(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("table", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run to print")
	agents := fs.Bool("agents", false, "print the agent-level table instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("table requires -run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	table, err := client.Table(ctx, *runID)
	if err != nil {
		return err
	}
	if *agents {
		return collect.WriteAgentCSV(os.Stdout, table.AgentColumns, table.AgentRows)
	}
	return collect.WriteModelCSV(os.Stdout, table.Columns, table.Rows)
}

func runContactGraph(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("contact-graph", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run whose contact graph to print")
	degrees := fs.Bool("degrees", false, "print weighted degrees instead of edges")
	jsonOut := fs.Bool("json", false, "emit the graph as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("contact-graph requires -run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.ContactGraph(ctx, *runID)
	if err != nil {
		return err
	}
	edges, err := client.ContactEdges(ctx, *runID)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(struct {
			Nodes   int             `json:"nodes"`
			Degrees map[int]float64 `json:"degrees"`
			Edges   []contact.Edge  `json:"edges"`
		}{summary.Nodes, summary.Degrees, edges})
	}
	fmt.Printf("nodes=%d edges=%d\n", summary.Nodes, summary.Edges)
	if *degrees {
		for _, id := range sortedIntKeys(summary.Degrees) {
			fmt.Printf("agent=%d degree=%g\n", id, summary.Degrees[id])
		}
		return nil
	}
	for _, edge := range edges {
		fmt.Printf("a=%d b=%d weight=%g\n", edge.A, edge.B, edge.Weight)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "", "output directory (defaults to exports/)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, gridlab.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func usageError(msg string) error {
	commands := strings.Join([]string{
		"init", "reset", "kinds", "run", "batch", "runs", "table", "contact-graph", "export",
	}, "|")
	return fmt.Errorf("%s\nusage: gridlabctl <%s> [flags]", msg, commands)
}
