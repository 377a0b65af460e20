// Package task is the boundary to the distributed execution substrate. A
// submitted unit of work returns a handle immediately; the substrate owns
// delaying execution until every dependency handle has resolved.
package task

import (
	"context"
	"fmt"
)

// Inputs holds the resolved payloads of a task's dependencies, keyed by the
// dependency task's name.
type Inputs map[string]any

// Func is the body of one unit of work. It runs only after all dependency
// handles have resolved successfully.
type Func func(ctx context.Context, inputs Inputs) (any, error)

// Submission describes one asynchronous unit of work. Dependencies are
// unresolved handles; the caller never waits on them itself.
type Submission struct {
	Name         string
	Fn           Func
	Dependencies []*Handle
	CPUs         int
	GPUs         int
}

func (s Submission) validate() error {
	if s.Name == "" {
		return fmt.Errorf("submission name is required")
	}
	if s.Fn == nil {
		return fmt.Errorf("submission fn is required")
	}
	if s.CPUs < 1 {
		return fmt.Errorf("submission %q requests %d cpus, need >= 1", s.Name, s.CPUs)
	}
	if s.GPUs < 0 {
		return fmt.Errorf("submission %q requests %d gpus, need >= 0", s.Name, s.GPUs)
	}
	return nil
}

// Runtime is the execution substrate lifecycle object. Implementations must
// return from Submit without blocking on execution.
type Runtime interface {
	Submit(ctx context.Context, sub Submission) (*Handle, error)
	Shutdown(ctx context.Context) error
}

// Failure reports which task a join failed on.
type Failure struct {
	TaskName string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("task %q: %v", f.TaskName, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
