package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Run and stage statuses recorded in the ledger.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// AlgorithmSpec configures the hyperparameter search used inside one stage.
// A zero value means exhaustive grid search.
type AlgorithmSpec struct {
	Type   string
	Trials int
	Seed   int64
}

// Experiment is the top-level aggregate: a named pipeline plus per-stage
// search, reduction and resource configuration. It is immutable during
// execution.
type Experiment struct {
	Name       string
	SavePath   string
	Debug      bool
	Pipeline   PipelineSpec
	Algorithms map[string]AlgorithmSpec
	Reductions map[string]int
	Budgets    ResourceBudgets
}

// Algorithm returns the search configuration for a stage, or the zero value
// (grid search) when unset.
func (e Experiment) Algorithm(stage string) AlgorithmSpec {
	return e.Algorithms[stage]
}

// Reduction returns the number of trials kept after a stage completes.
// Zero means no reduction.
func (e Experiment) Reduction(stage string) int {
	return e.Reductions[stage]
}

func (e Experiment) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("experiment name is required")
	}
	if len(e.Pipeline.Stages) == 0 {
		return errors.New("pipeline must declare at least one stage")
	}
	for stage := range e.Algorithms {
		if !e.Pipeline.Has(stage) {
			return fmt.Errorf("algorithm configured for undeclared stage %q", stage)
		}
	}
	for stage, k := range e.Reductions {
		if !e.Pipeline.Has(stage) {
			return fmt.Errorf("reduction configured for undeclared stage %q", stage)
		}
		if k < 0 {
			return fmt.Errorf("reduction for stage %q must be >= 0", stage)
		}
	}
	for stage := range e.Budgets {
		if !e.Pipeline.Has(stage) {
			return fmt.Errorf("budget configured for undeclared stage %q", stage)
		}
	}
	return nil
}
