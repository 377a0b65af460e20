package domain

import "fmt"

// Budget is the per-stage resource allocation passed to the execution
// substrate's admission control. Allocations are advisory; nothing is
// enforced locally.
type Budget struct {
	CPUs int
	GPUs int
}

// DefaultBudget is applied to stages absent from the budget mapping.
var DefaultBudget = Budget{CPUs: 1, GPUs: 0}

// ResourceBudgets maps stage names to resource budgets.
type ResourceBudgets map[string]Budget

// Lookup returns the budget for a stage, applying defaults for absent
// entries and unset CPU counts. Negative counts fail with ErrInvalidBudget.
func (b ResourceBudgets) Lookup(stage string) (Budget, error) {
	budget, ok := b[stage]
	if !ok {
		return DefaultBudget, nil
	}
	if budget.CPUs < 0 {
		return Budget{}, fmt.Errorf("%w: stage %q requests %d cpus", ErrInvalidBudget, stage, budget.CPUs)
	}
	if budget.GPUs < 0 {
		return Budget{}, fmt.Errorf("%w: stage %q requests %d gpus", ErrInvalidBudget, stage, budget.GPUs)
	}
	if budget.CPUs == 0 {
		budget.CPUs = DefaultBudget.CPUs
	}
	return budget, nil
}
