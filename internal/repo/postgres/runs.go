package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ember-labs/ember-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) InsertRun(ctx context.Context, record repo.RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	runID := strings.TrimSpace(record.ID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(record.Experiment) == "" {
		return fmt.Errorf("experiment name is required")
	}
	if strings.TrimSpace(record.Status) == "" {
		return fmt.Errorf("status is required")
	}

	var finishedAt sql.NullTime
	if record.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: record.FinishedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO experiment_runs (
			run_id,
			experiment,
			status,
			save_path,
			stages,
			started_at,
			finished_at,
			error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		runID,
		strings.TrimSpace(record.Experiment),
		strings.TrimSpace(record.Status),
		nullIfEmpty(record.SavePath),
		record.Stages,
		normalizeTime(record.StartedAt),
		finishedAt,
		nullIfEmpty(record.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *RunStore) FinishRun(ctx context.Context, runID, status, runErr string, finishedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(status) == "" {
		return fmt.Errorf("status is required")
	}

	result, err := s.db.ExecContext(
		ctx,
		`UPDATE experiment_runs
		 SET status = $2, finished_at = $3, error = $4
		 WHERE run_id = $1`,
		runID,
		strings.TrimSpace(status),
		normalizeTime(finishedAt),
		nullIfEmpty(runErr),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, runID string) (repo.RunRecord, error) {
	if s == nil || s.db == nil {
		return repo.RunRecord{}, fmt.Errorf("run store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return repo.RunRecord{}, fmt.Errorf("run id is required")
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT run_id, experiment, status, save_path, stages, started_at, finished_at, error
		 FROM experiment_runs
		 WHERE run_id = $1`,
		runID,
	)
	record, err := scanRun(row.Scan)
	if err != nil {
		return repo.RunRecord{}, handleNotFound(err)
	}
	return record, nil
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]repo.RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, experiment, status, save_path, stages, started_at, finished_at, error
		 FROM experiment_runs
		 WHERE ($1 = '' OR experiment = $1)
		   AND ($2 = '' OR status = $2)
		 ORDER BY started_at DESC
		 LIMIT $3`,
		strings.TrimSpace(filter.Experiment),
		strings.TrimSpace(filter.Status),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []repo.RunRecord
	for rows.Next() {
		record, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

func scanRun(scan func(...any) error) (repo.RunRecord, error) {
	var record repo.RunRecord
	var savePath sql.NullString
	var finishedAt sql.NullTime
	var runErr sql.NullString
	if err := scan(
		&record.ID,
		&record.Experiment,
		&record.Status,
		&savePath,
		&record.Stages,
		&record.StartedAt,
		&finishedAt,
		&runErr,
	); err != nil {
		return repo.RunRecord{}, err
	}
	record.SavePath = savePath.String
	record.Error = runErr.String
	if finishedAt.Valid {
		t := finishedAt.Time
		record.FinishedAt = &t
	}
	return record, nil
}
