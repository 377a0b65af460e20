package domain

import (
	"errors"
	"testing"
)

func TestBudgetLookupDefault(t *testing.T) {
	budgets := ResourceBudgets{"train": {CPUs: 4, GPUs: 1}}

	got, err := budgets.Lookup("prep")
	if err != nil {
		t.Fatalf("Lookup() err=%v", err)
	}
	if got != (Budget{CPUs: 1, GPUs: 0}) {
		t.Fatalf("Lookup()=%+v, want default (1,0)", got)
	}
}

func TestBudgetLookupExplicit(t *testing.T) {
	budgets := ResourceBudgets{"train": {CPUs: 4, GPUs: 1}}

	got, err := budgets.Lookup("train")
	if err != nil {
		t.Fatalf("Lookup() err=%v", err)
	}
	if got != (Budget{CPUs: 4, GPUs: 1}) {
		t.Fatalf("Lookup()=%+v, want (4,1)", got)
	}
}

func TestBudgetLookupUnsetCPUs(t *testing.T) {
	budgets := ResourceBudgets{"train": {GPUs: 2}}

	got, err := budgets.Lookup("train")
	if err != nil {
		t.Fatalf("Lookup() err=%v", err)
	}
	if got != (Budget{CPUs: 1, GPUs: 2}) {
		t.Fatalf("Lookup()=%+v, want (1,2)", got)
	}
}

func TestBudgetLookupNegative(t *testing.T) {
	for _, budgets := range []ResourceBudgets{
		{"train": {CPUs: -1}},
		{"train": {CPUs: 1, GPUs: -2}},
	} {
		if _, err := budgets.Lookup("train"); !errors.Is(err, ErrInvalidBudget) {
			t.Fatalf("Lookup() err=%v, want ErrInvalidBudget", err)
		}
	}
}
