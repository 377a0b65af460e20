package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/task"
)

// recordingComputable captures every trial it ran and answers with a metric
// derived from the trial index.
type recordingComputable struct {
	trials []Trial
	fail   error
}

func (c *recordingComputable) Run(_ context.Context, trial Trial, _ domain.Environment) (Outcome, error) {
	if c.fail != nil {
		return Outcome{}, c.fail
	}
	c.trials = append(c.trials, trial)
	return Outcome{
		Metric:  float64(trial.Index),
		Outputs: map[string]any{"dir": trial.Dir},
	}, nil
}

type memorySink struct {
	results []domain.StageResult
	err     error
}

func (s *memorySink) WriteStageResult(_ context.Context, result domain.StageResult) error {
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func testEnv(t *testing.T) domain.Environment {
	t.Helper()
	return domain.Environment{SavePath: t.TempDir()}
}

func registryWith(t *testing.T, name string, c Computable) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Register(name, func(domain.StageSpec) (Computable, error) { return c, nil })
	return r
}

func TestRunnerExpandsTrials(t *testing.T) {
	comp := &recordingComputable{}
	sink := &memorySink{}
	runner := NewRunner(registryWith(t, "train", comp), nil, sink)

	result, err := runner.Run(context.Background(), Request{
		RunID: "run-1",
		Stage: domain.StageSpec{
			Name:      "train",
			Component: "train",
			Params: map[string]any{
				"lr":     []any{0.1, 0.01},
				"epochs": 3,
			},
		},
		Env: testEnv(t),
	}, nil)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	if len(comp.trials) != 2 {
		t.Fatalf("ran %d trials, want 2", len(comp.trials))
	}
	if len(result.Trials) != 2 {
		t.Fatalf("result has %d trials, want 2", len(result.Trials))
	}
	for _, trial := range comp.trials {
		if trial.Params["epochs"] != 3 {
			t.Fatalf("trial lost fixed param: %v", trial.Params)
		}
		if trial.Dir == "" {
			t.Fatalf("trial has no directory")
		}
	}
	if len(sink.results) != 1 || sink.results[0].Stage != "train" {
		t.Fatalf("sink did not receive the stage result: %v", sink.results)
	}
	if result.RunID != "run-1" {
		t.Fatalf("RunID=%q, want run-1", result.RunID)
	}
}

func TestRunnerResolvesDependencyLinks(t *testing.T) {
	comp := &recordingComputable{}
	runner := NewRunner(registryWith(t, "eval", comp), nil, nil)

	inputs := task.Inputs{
		"train": domain.StageResult{
			Stage: "train",
			Trials: []domain.TrialResult{
				{ID: "t0", Metric: 0.3, Outputs: map[string]any{"model": "m0"}},
				{ID: "t1", Metric: 0.9, Outputs: map[string]any{"model": "m1"}},
			},
		},
	}

	_, err := runner.Run(context.Background(), Request{
		RunID: "run-1",
		Stage: domain.StageSpec{
			Name:      "eval",
			Component: "eval",
			Params: map[string]any{
				"model": "@{train.model}",
				"note":  "uses @{train.model} checkpoint",
			},
		},
		Env: testEnv(t),
	}, inputs)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	if len(comp.trials) != 1 {
		t.Fatalf("ran %d trials, want 1", len(comp.trials))
	}
	params := comp.trials[0].Params
	if params["model"] != "m1" {
		t.Fatalf("model=%v, want best trial's m1", params["model"])
	}
	if params["note"] != "uses m1 checkpoint" {
		t.Fatalf("note=%v, want interpolated string", params["note"])
	}
}

func TestRunnerReducesTrials(t *testing.T) {
	comp := &recordingComputable{}
	runner := NewRunner(registryWith(t, "tune", comp), nil, nil)

	result, err := runner.Run(context.Background(), Request{
		RunID: "run-1",
		Stage: domain.StageSpec{
			Name:      "tune",
			Component: "tune",
			Params:    map[string]any{"depth": []any{1, 2, 3, 4}},
		},
		Reduction: 2,
		Env:       testEnv(t),
	}, nil)
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	if len(comp.trials) != 4 {
		t.Fatalf("ran %d trials, want 4", len(comp.trials))
	}
	if len(result.Trials) != 2 {
		t.Fatalf("kept %d trials after reduction, want 2", len(result.Trials))
	}
	for _, trial := range result.Trials {
		if trial.Metric < 2 {
			t.Fatalf("reduction kept a low-metric trial: %v", trial)
		}
	}
}

func TestRunnerUnresolvedLink(t *testing.T) {
	runner := NewRunner(NewRegistry(), nil, nil)

	_, err := runner.Run(context.Background(), Request{
		RunID: "run-1",
		Stage: domain.StageSpec{
			Name:   "eval",
			Params: map[string]any{"model": "@{train.model}"},
		},
		Env: testEnv(t),
	}, nil)
	if !errors.Is(err, domain.ErrUnresolvedDependency) {
		t.Fatalf("Run() err=%v, want ErrUnresolvedDependency", err)
	}
}

func TestRunnerWrongPayloadType(t *testing.T) {
	runner := NewRunner(NewRegistry(), nil, nil)

	_, err := runner.Run(context.Background(), Request{
		RunID: "run-1",
		Stage: domain.StageSpec{Name: "eval"},
		Env:   testEnv(t),
	}, task.Inputs{"train": "not a stage result"})
	if err == nil || !strings.Contains(err.Error(), "want StageResult") {
		t.Fatalf("Run() err=%v, want payload type error", err)
	}
}

func TestRunnerTrialFailure(t *testing.T) {
	boom := errors.New("diverged")
	comp := &recordingComputable{fail: boom}
	runner := NewRunner(registryWith(t, "train", comp), nil, nil)

	_, err := runner.Run(context.Background(), Request{
		RunID: "run-1",
		Stage: domain.StageSpec{Name: "train", Component: "train"},
		Env:   testEnv(t),
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() err=%v, want wrapped trial failure", err)
	}
}

func TestRegistryBuildDefaults(t *testing.T) {
	r := NewRegistry()
	r.Register("script", func(domain.StageSpec) (Computable, error) {
		return &recordingComputable{}, nil
	})

	if _, err := r.Build(domain.StageSpec{Name: "sync"}); err != nil {
		t.Fatalf("Build() noop default err=%v", err)
	}
	if _, err := r.Build(domain.StageSpec{Name: "train", Script: "train.sh"}); err != nil {
		t.Fatalf("Build() script default err=%v", err)
	}
	if _, err := r.Build(domain.StageSpec{Name: "x", Component: "missing"}); err == nil {
		t.Fatalf("Build() expected error for unknown component")
	}
}
