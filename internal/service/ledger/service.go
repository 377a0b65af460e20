// Package ledger records run and stage lifecycle events into the
// repositories. It implements the scheduler's Recorder boundary.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/repo"
)

type Service struct {
	runs   repo.RunRepository
	stages repo.StageExecutionRepository
}

func New(runRepo repo.RunRepository, stageRepo repo.StageExecutionRepository) *Service {
	if runRepo == nil || stageRepo == nil {
		return nil
	}
	return &Service{runs: runRepo, stages: stageRepo}
}

func (s *Service) RunStarted(ctx context.Context, runID string, exp domain.Experiment) error {
	if s == nil {
		return errors.New("ledger not initialized")
	}
	return s.runs.InsertRun(ctx, repo.RunRecord{
		ID:         runID,
		Experiment: exp.Name,
		Status:     domain.StatusRunning,
		SavePath:   exp.SavePath,
		Stages:     len(exp.Pipeline.Stages),
		StartedAt:  time.Now().UTC(),
	})
}

func (s *Service) RunFinished(ctx context.Context, runID, status string, runErr error) error {
	if s == nil {
		return errors.New("ledger not initialized")
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	return s.runs.FinishRun(ctx, runID, status, message, time.Now().UTC())
}

func (s *Service) StageSubmitted(ctx context.Context, runID, stageName string) error {
	if s == nil {
		return errors.New("ledger not initialized")
	}
	return s.stages.InsertStage(ctx, repo.StageExecutionRecord{
		RunID:       runID,
		Stage:       stageName,
		Status:      domain.StatusPending,
		SubmittedAt: time.Now().UTC(),
	})
}

func (s *Service) StageFinished(ctx context.Context, runID, stageName, status string, stageErr error) error {
	if s == nil {
		return errors.New("ledger not initialized")
	}
	message := ""
	if stageErr != nil {
		message = stageErr.Error()
	}
	return s.stages.FinishStage(ctx, runID, stageName, status, message, time.Now().UTC())
}
