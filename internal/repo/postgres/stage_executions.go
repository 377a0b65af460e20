package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ember-labs/ember-go/internal/repo"
)

type StageExecutionStore struct {
	db DB
}

const (
	insertStageExecutionQuery = `INSERT INTO stage_executions (
		stage_execution_id,
		run_id,
		stage,
		status,
		submitted_at,
		finished_at,
		error
	) VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (run_id, stage) DO NOTHING`

	finishStageExecutionQuery = `UPDATE stage_executions
	 SET status = $3, finished_at = $4, error = $5
	 WHERE run_id = $1 AND stage = $2`

	listStageExecutionsByRunQuery = `SELECT stage_execution_id, run_id, stage, status, submitted_at, finished_at, error
	 FROM stage_executions
	 WHERE run_id = $1
	 ORDER BY submitted_at ASC, stage ASC`
)

func NewStageExecutionStore(db DB) *StageExecutionStore {
	if db == nil {
		return nil
	}
	return &StageExecutionStore{db: db}
}

func (s *StageExecutionStore) InsertStage(ctx context.Context, record repo.StageExecutionRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("stage execution store not initialized")
	}
	runID := strings.TrimSpace(record.RunID)
	stage := strings.TrimSpace(record.Stage)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if stage == "" {
		return fmt.Errorf("stage name is required")
	}
	status := strings.TrimSpace(record.Status)
	if status == "" {
		return fmt.Errorf("status is required")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = uuid.NewString()
	}

	var finishedAt sql.NullTime
	if record.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: record.FinishedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(
		ctx,
		insertStageExecutionQuery,
		id,
		runID,
		stage,
		status,
		normalizeTime(record.SubmittedAt),
		finishedAt,
		nullIfEmpty(record.Error),
	)
	if err != nil {
		return fmt.Errorf("insert stage execution: %w", err)
	}
	return nil
}

func (s *StageExecutionStore) FinishStage(ctx context.Context, runID, stage, status, stageErr string, finishedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("stage execution store not initialized")
	}
	runID = strings.TrimSpace(runID)
	stage = strings.TrimSpace(stage)
	if runID == "" || stage == "" {
		return fmt.Errorf("run id and stage name are required")
	}
	if strings.TrimSpace(status) == "" {
		return fmt.Errorf("status is required")
	}

	result, err := s.db.ExecContext(
		ctx,
		finishStageExecutionQuery,
		runID,
		stage,
		strings.TrimSpace(status),
		normalizeTime(finishedAt),
		nullIfEmpty(stageErr),
	)
	if err != nil {
		return fmt.Errorf("finish stage execution: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish stage execution: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *StageExecutionStore) ListByRun(ctx context.Context, runID string) ([]repo.StageExecutionRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("stage execution store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	rows, err := s.db.QueryContext(ctx, listStageExecutionsByRunQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage executions: %w", err)
	}
	defer rows.Close()

	var records []repo.StageExecutionRecord
	for rows.Next() {
		var record repo.StageExecutionRecord
		var finishedAt sql.NullTime
		var stageErr sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Stage,
			&record.Status,
			&record.SubmittedAt,
			&finishedAt,
			&stageErr,
		); err != nil {
			return nil, fmt.Errorf("scan stage execution: %w", err)
		}
		record.Error = stageErr.String
		if finishedAt.Valid {
			t := finishedAt.Time
			record.FinishedAt = &t
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stage executions: %w", err)
	}
	return records, nil
}
