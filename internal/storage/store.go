package storage

import (
	"context"

	"gridlab/internal/model"
)

// Store defines persistence operations for completed runs and batches.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveBatch(ctx context.Context, batch model.BatchRecord) error
	GetBatch(ctx context.Context, id string) (model.BatchRecord, bool, error)
	SaveModelRows(ctx context.Context, runID string, rows []model.ModelRow) error
	GetModelRows(ctx context.Context, runID string) ([]model.ModelRow, bool, error)
	SaveAgentRows(ctx context.Context, runID string, rows []model.AgentRow) error
	GetAgentRows(ctx context.Context, runID string) ([]model.AgentRow, bool, error)
	SaveLedgers(ctx context.Context, runID string, ledgers map[int]map[int]int) error
	GetLedgers(ctx context.Context, runID string) (map[int]map[int]int, bool, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
