// Package stage executes one pipeline stage: it resolves dependency
// payloads, expands the stage's parameter space into trials, runs each
// trial through the stage's computable, and reduces the results.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/search"
	"github.com/ember-labs/ember-go/internal/task"
)

// Request carries everything one stage execution needs. The pipeline is the
// sub-pipeline scoped to this stage and its transitive inputs.
type Request struct {
	RunID     string
	Stage     domain.StageSpec
	Pipeline  domain.PipelineSpec
	Algorithm domain.AlgorithmSpec
	Reduction int
	Env       domain.Environment
}

// ResultSink persists a completed stage's result artifact.
type ResultSink interface {
	WriteStageResult(ctx context.Context, result domain.StageResult) error
}

// Runner drives the trials of a single stage. One runner is shared across
// stages; per-stage state lives in the Request.
type Runner struct {
	registry *Registry
	logger   *slog.Logger
	sink     ResultSink
}

// NewRunner builds a stage runner. The sink may be nil, in which case no
// result artifact is written.
func NewRunner(registry *Registry, logger *slog.Logger, sink ResultSink) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{registry: registry, logger: logger, sink: sink}
}

// Run executes every trial of the stage and returns the reduced result.
// Inputs hold the already-resolved payloads of the stage's dependencies,
// keyed by stage name.
func (r *Runner) Run(ctx context.Context, req Request, inputs task.Inputs) (domain.StageResult, error) {
	started := time.Now().UTC()

	deps := make(map[string]domain.StageResult, len(inputs))
	for name, payload := range inputs {
		result, ok := payload.(domain.StageResult)
		if !ok {
			return domain.StageResult{}, fmt.Errorf("dependency %q resolved to %T, want StageResult", name, payload)
		}
		deps[name] = result
	}

	params, err := resolveParams(req.Stage.Params, deps)
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("resolve stage %q params: %w", req.Stage.Name, err)
	}
	args, err := resolveArgs(req.Stage.Args, deps)
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("resolve stage %q args: %w", req.Stage.Name, err)
	}
	spec := req.Stage
	spec.Args = args

	algorithm, err := search.New(req.Algorithm)
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("stage %q: %w", req.Stage.Name, err)
	}
	trialParams, err := algorithm.Expand(search.NewSpace(params))
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("expand stage %q trials: %w", req.Stage.Name, err)
	}

	computable, err := r.registry.Build(spec)
	if err != nil {
		return domain.StageResult{}, err
	}

	r.logger.Info("stage started",
		"run_id", req.RunID,
		"stage", req.Stage.Name,
		"algorithm", algorithm.Name(),
		"trials", len(trialParams),
	)

	trials := make([]domain.TrialResult, 0, len(trialParams))
	for i, p := range trialParams {
		trial := Trial{
			ID:     uuid.NewString(),
			Stage:  req.Stage.Name,
			Index:  i,
			Params: p,
			Dir:    fmt.Sprintf("%s/trial-%03d", req.Env.StageDir(req.RunID, req.Stage.Name), i),
		}
		if err := os.MkdirAll(trial.Dir, 0o755); err != nil {
			return domain.StageResult{}, fmt.Errorf("create trial dir: %w", err)
		}
		outcome, err := computable.Run(ctx, trial, req.Env)
		if err != nil {
			return domain.StageResult{}, fmt.Errorf("trial %d of stage %q: %w", i, req.Stage.Name, err)
		}
		trials = append(trials, domain.TrialResult{
			ID:      trial.ID,
			Params:  p,
			Metric:  outcome.Metric,
			Outputs: outcome.Outputs,
		})
	}

	result := domain.StageResult{
		Stage:      req.Stage.Name,
		RunID:      req.RunID,
		Trials:     search.Reduce(trials, req.Reduction),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}

	if r.sink != nil {
		if err := r.sink.WriteStageResult(ctx, result); err != nil {
			return domain.StageResult{}, fmt.Errorf("write stage %q result: %w", req.Stage.Name, err)
		}
	}

	r.logger.Info("stage finished",
		"run_id", req.RunID,
		"stage", req.Stage.Name,
		"kept_trials", len(result.Trials),
	)
	return result, nil
}
