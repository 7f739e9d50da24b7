// Package stats persists experiment artifacts: JSON descriptions of sweep
// executions that downstream analysis tooling reads without touching the
// engine's store.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gridlab/internal/model"
)

const experimentsDir = "experiments"

// Progress flags recorded on an experiment artifact.
const (
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
	ProgressFailed     = "failed"
)

// RunSummary condenses one instance's outcome for the experiment artifact.
type RunSummary struct {
	RunID       string             `json:"run_id"`
	Combination int                `json:"combination"`
	Iteration   int                `json:"iteration"`
	Seed        int64              `json:"seed"`
	Steps       int                `json:"steps"`
	Final       map[string]float64 `json:"final,omitempty"`
}

// Experiment is the on-disk record of one sweep execution.
type Experiment struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Notes          string         `json:"notes,omitempty"`
	ProgressFlag   string         `json:"progress_flag"`
	Combinations   int            `json:"combinations"`
	Iterations     int            `json:"iterations"`
	StartedAtUTC   string         `json:"started_at_utc,omitempty"`
	CompletedAtUTC string         `json:"completed_at_utc,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	RunIDs         []string       `json:"run_ids,omitempty"`
	Failures       []string       `json:"failures,omitempty"`
	Summaries      []RunSummary   `json:"summaries,omitempty"`
}

func WriteExperiment(baseDir string, exp Experiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment id is required")
	}
	path := experimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func ReadExperiment(baseDir, id string) (Experiment, bool, error) {
	if id == "" {
		return Experiment{}, false, fmt.Errorf("experiment id is required")
	}
	path := experimentPath(baseDir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Experiment{}, false, nil
		}
		return Experiment{}, false, err
	}
	var exp Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return Experiment{}, false, err
	}
	return exp, true, nil
}

func ListExperiments(baseDir string) ([]Experiment, error) {
	root := filepath.Join(baseDir, experimentsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Experiment{}, nil
		}
		return nil, err
	}

	exps := make([]Experiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func experimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, experimentsDir, id, "experiment.json")
}

// FinalValues returns the values of the last collected row, the snapshot a
// run summary reports.
func FinalValues(rows []model.ModelRow) map[string]float64 {
	if len(rows) == 0 {
		return nil
	}
	last := rows[len(rows)-1]
	out := make(map[string]float64, len(last.Values))
	for name, v := range last.Values {
		out[name] = v
	}
	return out
}
