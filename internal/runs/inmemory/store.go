package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/bacs-export/internal/logger"
	"github.com/dvloznov/bacs-export/internal/runs"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of runs.Store.
// It is safe for concurrent use. Data is lost when the process exits.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*runs.Run
	now  func() time.Time
}

// NewStore creates an empty in-memory run store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*runs.Run),
		now:  time.Now,
	}
}

// StartRun stores a RUNNING record and returns its id.
func (s *Store) StartRun(ctx context.Context, exportType string, windowStart, windowEnd time.Time) (string, error) {
	if exportType == "" {
		return "", fmt.Errorf("StartRun: export type is required")
	}

	run := &runs.Run{
		RunID:       uuid.NewString(),
		ExportType:  exportType,
		Status:      runs.StatusRunning,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		StartedAt:   s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run

	return run.RunID, nil
}

// MarkRunSucceeded implements runs.Recorder.
func (s *Store) MarkRunSucceeded(ctx context.Context, runID, fileName string, rowCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return fmt.Errorf("MarkRunSucceeded: %w: %s", runs.ErrRunNotFound, runID)
	}

	finished := s.now()
	run.Status = runs.StatusSuccess
	run.FinishedAt = &finished
	run.FileName = fileName
	run.RowCount = rowCount
	run.ErrorMessage = ""

	return nil
}

// MarkRunFailed implements runs.Recorder.
func (s *Store) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		log := logger.FromContext(ctx)
		log.Error().
			Str("run_id", runID).
			Msg("MarkRunFailed: run not found")
		return
	}

	finished := s.now()
	run.Status = runs.StatusFailed
	run.FinishedAt = &finished
	run.ErrorMessage = runs.ErrorMessage(runErr)
}

// GetRun returns a copy of the run with the given id.
func (s *Store) GetRun(ctx context.Context, runID string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("GetRun: %w: %s", runs.ErrRunNotFound, runID)
	}

	return copyRun(run), nil
}

// ListRuns returns copies of the matching runs, newest first.
func (s *Store) ListRuns(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*runs.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.ExportType != "" && run.ExportType != filter.ExportType {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, copyRun(run))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].RunID < result[j].RunID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*runs.Run{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func copyRun(run *runs.Run) *runs.Run {
	c := *run
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		c.FinishedAt = &finished
	}
	return &c
}

var _ runs.Store = (*Store)(nil)
