package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownReference indicates a stage links to a stage name that is
	// not declared in the pipeline.
	ErrUnknownReference = errors.New("unknown stage reference")

	// ErrUnresolvedDependency indicates a stage was submitted before one of
	// its dependencies, which violates the declared-order precondition.
	ErrUnresolvedDependency = errors.New("unresolved stage dependency")

	// ErrInvalidBudget indicates a malformed resource budget entry.
	ErrInvalidBudget = errors.New("invalid resource budget")
)

// StageExecutionError reports the failure of a submitted stage. It wraps the
// error surfaced by the execution substrate.
type StageExecutionError struct {
	Stage string
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}
