package storage

import (
	"context"
	"sort"
	"sync"

	"gridlab/internal/model"
)

type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]model.RunRecord
	batches   map[string]model.BatchRecord
	modelRows map[string][]model.ModelRow
	agentRows map[string][]model.AgentRow
	ledgers   map[string]map[int]map[int]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.batches = make(map[string]model.BatchRecord)
	s.modelRows = make(map[string][]model.ModelRow)
	s.agentRows = make(map[string][]model.AgentRow)
	s.ledgers = make(map[string]map[int]map[int]int)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC != runs[j].CreatedAtUTC {
			return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) SaveBatch(_ context.Context, batch model.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[batch.ID] = batch
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (model.BatchRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[id]
	return batch, ok, nil
}

func (s *MemoryStore) SaveModelRows(_ context.Context, runID string, rows []model.ModelRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.ModelRow, len(rows))
	copy(copied, rows)
	s.modelRows[runID] = copied
	return nil
}

func (s *MemoryStore) GetModelRows(_ context.Context, runID string) ([]model.ModelRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.modelRows[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.ModelRow, len(rows))
	copy(copied, rows)
	return copied, true, nil
}

func (s *MemoryStore) SaveAgentRows(_ context.Context, runID string, rows []model.AgentRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.AgentRow, len(rows))
	copy(copied, rows)
	s.agentRows[runID] = copied
	return nil
}

func (s *MemoryStore) GetAgentRows(_ context.Context, runID string) ([]model.AgentRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.agentRows[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.AgentRow, len(rows))
	copy(copied, rows)
	return copied, true, nil
}

func (s *MemoryStore) SaveLedgers(_ context.Context, runID string, ledgers map[int]map[int]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[runID] = copyLedgers(ledgers)
	return nil
}

func (s *MemoryStore) GetLedgers(_ context.Context, runID string) (map[int]map[int]int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledgers, ok := s.ledgers[runID]
	if !ok {
		return nil, false, nil
	}
	return copyLedgers(ledgers), true, nil
}

func copyLedgers(ledgers map[int]map[int]int) map[int]map[int]int {
	copied := make(map[int]map[int]int, len(ledgers))
	for id, ledger := range ledgers {
		inner := make(map[int]int, len(ledger))
		for peer, count := range ledger {
			inner[peer] = count
		}
		copied[id] = inner
	}
	return copied
}
