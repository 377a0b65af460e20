// Package scheduler owns the experiment submission loop: it walks the
// pipeline's stages in declared order, submits each one to the execution
// substrate with its dependency handles and resource budget, and joins on
// completion. Submissions are eager and non-blocking; dependency handles,
// never resolved values, are what gets threaded into later submissions, so
// independent branches run concurrently and dependent branches serialize
// through handle resolution alone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/execution/graph"
	"github.com/ember-labs/ember-go/internal/execution/specvalidator"
	"github.com/ember-labs/ember-go/internal/stage"
	"github.com/ember-labs/ember-go/internal/task"
)

// Recorder persists run and stage lifecycle events. Recording is advisory:
// failures are logged, never fatal to the run.
type Recorder interface {
	RunStarted(ctx context.Context, runID string, exp domain.Experiment) error
	RunFinished(ctx context.Context, runID, status string, runErr error) error
	StageSubmitted(ctx context.Context, runID, stageName string) error
	StageFinished(ctx context.Context, runID, stageName, status string, stageErr error) error
}

// Scheduler drives one experiment run on an execution substrate.
type Scheduler struct {
	runtime  task.Runtime
	runner   *stage.Runner
	logger   *slog.Logger
	recorder Recorder
}

// New builds a scheduler. The recorder may be nil.
func New(runtime task.Runtime, runner *stage.Runner, logger *slog.Logger, recorder Recorder) (*Scheduler, error) {
	if runtime == nil {
		return nil, errors.New("runtime is required")
	}
	if runner == nil {
		return nil, errors.New("stage runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runtime: runtime, runner: runner, logger: logger, recorder: recorder}, nil
}

// Run validates the experiment, submits every stage in declared order and
// blocks until all stages complete. Any stage failure aborts the run with a
// *domain.StageExecutionError; there is no partial-success continuation.
func (s *Scheduler) Run(ctx context.Context, exp domain.Experiment, env domain.Environment) error {
	if err := exp.Validate(); err != nil {
		return fmt.Errorf("invalid experiment: %w", err)
	}
	if err := specvalidator.ValidatePipelineSpec(exp.Pipeline); err != nil {
		return err
	}
	if env == (domain.Environment{}) {
		env = domain.NewEnvironment(exp.SavePath, exp.Debug)
	}
	if err := env.Validate(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	g, err := graph.Build(exp.Pipeline)
	if err != nil {
		return err
	}
	// Declared order is a precondition, not something the scheduler repairs.
	if err := g.ValidateDeclaredOrder(); err != nil {
		return err
	}

	runID := uuid.NewString()
	s.logger.Info("run started", "run_id", runID, "experiment", exp.Name, "stages", len(exp.Pipeline.Stages))
	s.record("run", func(r Recorder) error { return r.RunStarted(ctx, runID, exp) })

	handles := make(map[string]*task.Handle, len(exp.Pipeline.Stages))
	ordered := make([]*task.Handle, 0, len(exp.Pipeline.Stages))
	for _, spec := range exp.Pipeline.Stages {
		name := spec.Name

		subPipeline, err := g.SubPipeline(name)
		if err != nil {
			return err
		}
		depNames, err := g.DependenciesOf(name)
		if err != nil {
			return err
		}
		depHandles := make([]*task.Handle, 0, len(depNames))
		for _, dep := range depNames {
			h, ok := handles[dep]
			if !ok {
				return fmt.Errorf("%w: stage %q needs %q, which has not been submitted", domain.ErrUnresolvedDependency, name, dep)
			}
			depHandles = append(depHandles, h)
		}

		budget, err := exp.Budgets.Lookup(name)
		if err != nil {
			return err
		}

		req := stage.Request{
			RunID:     runID,
			Stage:     spec,
			Pipeline:  subPipeline,
			Algorithm: exp.Algorithm(name),
			Reduction: exp.Reduction(name),
			Env:       env,
		}
		handle, err := s.runtime.Submit(ctx, task.Submission{
			Name:         name,
			Fn:           s.stageFunc(runID, req),
			Dependencies: depHandles,
			CPUs:         budget.CPUs,
			GPUs:         budget.GPUs,
		})
		if err != nil {
			return fmt.Errorf("submit stage %q: %w", name, err)
		}

		s.logger.Debug("stage submitted",
			"run_id", runID,
			"stage", name,
			"dependencies", depNames,
			"cpus", budget.CPUs,
			"gpus", budget.GPUs,
		)
		s.record(name, func(r Recorder) error { return r.StageSubmitted(ctx, runID, name) })
		handles[name] = handle
		ordered = append(ordered, handle)
	}

	if err := task.Join(ctx, ordered); err != nil {
		var failure *task.Failure
		if errors.As(err, &failure) {
			err = &domain.StageExecutionError{Stage: failure.TaskName, Err: failure.Err}
		}
		s.logger.Error("run failed", "run_id", runID, "error", err)
		s.record("run", func(r Recorder) error {
			return r.RunFinished(context.WithoutCancel(ctx), runID, domain.StatusFailed, err)
		})
		return err
	}

	s.logger.Info("run finished", "run_id", runID)
	s.record("run", func(r Recorder) error { return r.RunFinished(ctx, runID, domain.StatusSucceeded, nil) })
	return nil
}

// stageFunc wraps the stage runner into a substrate task body. Inputs are
// the resolved dependency payloads; the substrate guarantees they are ready
// before the body runs.
func (s *Scheduler) stageFunc(runID string, req stage.Request) task.Func {
	return func(ctx context.Context, inputs task.Inputs) (any, error) {
		result, err := s.runner.Run(ctx, req, inputs)
		if err != nil {
			s.record(req.Stage.Name, func(r Recorder) error {
				return r.StageFinished(context.WithoutCancel(ctx), runID, req.Stage.Name, domain.StatusFailed, err)
			})
			return nil, err
		}
		s.record(req.Stage.Name, func(r Recorder) error {
			return r.StageFinished(ctx, runID, req.Stage.Name, domain.StatusSucceeded, nil)
		})
		return result, nil
	}
}

func (s *Scheduler) record(scope string, fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		s.logger.Warn("ledger write failed", "scope", scope, "error", err)
	}
}
