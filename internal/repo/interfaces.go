// Package repo defines the run ledger: persisted records of experiment runs
// and their stage executions, and the repositories that store them.
package repo

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// RunRecord is one row of the experiment run ledger.
type RunRecord struct {
	ID         string
	Experiment string
	Status     string
	SavePath   string
	Stages     int
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// StageExecutionRecord tracks one stage of a run from submission to
// completion.
type StageExecutionRecord struct {
	ID          string
	RunID       string
	Stage       string
	Status      string
	SubmittedAt time.Time
	FinishedAt  *time.Time
	Error       string
}

type RunFilter struct {
	Experiment string
	Status     string
	Limit      int
}

type RunRepository interface {
	InsertRun(ctx context.Context, record RunRecord) error
	FinishRun(ctx context.Context, runID, status, runErr string, finishedAt time.Time) error
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

type StageExecutionRepository interface {
	InsertStage(ctx context.Context, record StageExecutionRecord) error
	FinishStage(ctx context.Context, runID, stage, status, stageErr string, finishedAt time.Time) error
	ListByRun(ctx context.Context, runID string) ([]StageExecutionRecord, error)
}
