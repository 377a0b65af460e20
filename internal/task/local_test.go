package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestRuntime(t *testing.T, cfg Config) *Local {
	t.Helper()
	rt := NewLocal(cfg, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Shutdown(ctx)
	})
	return rt
}

func TestSubmitReturnsImmediately(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 1})

	release := make(chan struct{})
	h, err := rt.Submit(context.Background(), Submission{
		Name: "slow",
		CPUs: 1,
		Fn: func(context.Context, Inputs) (any, error) {
			<-release
			return "done", nil
		},
	})
	if err != nil {
		t.Fatalf("Submit() err=%v", err)
	}
	if h.Resolved() {
		t.Fatalf("handle resolved before task ran")
	}
	close(release)

	result, err := h.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() err=%v", err)
	}
	if result != "done" {
		t.Fatalf("Await()=%v, want done", result)
	}
}

func TestDependencyGating(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 2})

	release := make(chan struct{})
	var aDone atomic.Bool
	a, err := rt.Submit(context.Background(), Submission{
		Name: "a",
		CPUs: 1,
		Fn: func(context.Context, Inputs) (any, error) {
			<-release
			aDone.Store(true)
			return 42, nil
		},
	})
	if err != nil {
		t.Fatalf("Submit(a) err=%v", err)
	}

	b, err := rt.Submit(context.Background(), Submission{
		Name:         "b",
		CPUs:         1,
		Dependencies: []*Handle{a},
		Fn: func(_ context.Context, inputs Inputs) (any, error) {
			if !aDone.Load() {
				t.Error("b ran before its dependency resolved")
			}
			return inputs["a"], nil
		},
	})
	if err != nil {
		t.Fatalf("Submit(b) err=%v", err)
	}

	close(release)
	result, err := b.Await(context.Background())
	if err != nil {
		t.Fatalf("Await(b) err=%v", err)
	}
	if result != 42 {
		t.Fatalf("b received %v, want 42 from a", result)
	}
}

func TestFailedDependencySkipsTask(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 1})

	boom := errors.New("boom")
	a, err := rt.Submit(context.Background(), Submission{
		Name: "a",
		CPUs: 1,
		Fn: func(context.Context, Inputs) (any, error) {
			return nil, boom
		},
	})
	if err != nil {
		t.Fatalf("Submit(a) err=%v", err)
	}

	ran := false
	b, err := rt.Submit(context.Background(), Submission{
		Name:         "b",
		CPUs:         1,
		Dependencies: []*Handle{a},
		Fn: func(context.Context, Inputs) (any, error) {
			ran = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Submit(b) err=%v", err)
	}

	_, err = b.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Await(b) err=%v, want wrapped boom", err)
	}
	if ran {
		t.Fatalf("b ran despite failed dependency")
	}
}

func TestJoinSurfacesFirstFailure(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 2})

	ok, err := rt.Submit(context.Background(), Submission{
		Name: "ok",
		CPUs: 1,
		Fn:   func(context.Context, Inputs) (any, error) { return nil, nil },
	})
	if err != nil {
		t.Fatalf("Submit(ok) err=%v", err)
	}
	boom := errors.New("boom")
	bad, err := rt.Submit(context.Background(), Submission{
		Name: "bad",
		CPUs: 1,
		Fn:   func(context.Context, Inputs) (any, error) { return nil, boom },
	})
	if err != nil {
		t.Fatalf("Submit(bad) err=%v", err)
	}

	err = Join(context.Background(), []*Handle{ok, bad})
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Join() err=%v, want *Failure", err)
	}
	if failure.TaskName != "bad" || !errors.Is(failure, boom) {
		t.Fatalf("Join() failure=%+v, want task bad wrapping boom", failure)
	}
}

func TestJoinAllSucceed(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 2})

	var handles []*Handle
	for _, name := range []string{"a", "b", "c"} {
		h, err := rt.Submit(context.Background(), Submission{
			Name: name,
			CPUs: 1,
			Fn:   func(context.Context, Inputs) (any, error) { return nil, nil },
		})
		if err != nil {
			t.Fatalf("Submit(%s) err=%v", name, err)
		}
		handles = append(handles, h)
	}

	if err := Join(context.Background(), handles); err != nil {
		t.Fatalf("Join() err=%v", err)
	}
	for _, h := range handles {
		if !h.Resolved() {
			t.Fatalf("handle %q not resolved after join", h.Name())
		}
	}
}

func TestSubmitRejectsOversizedBudget(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 2, GPUs: 0})

	if _, err := rt.Submit(context.Background(), Submission{
		Name: "big",
		CPUs: 4,
		Fn:   func(context.Context, Inputs) (any, error) { return nil, nil },
	}); err == nil {
		t.Fatalf("Submit() expected error for cpu request over capacity")
	}

	if _, err := rt.Submit(context.Background(), Submission{
		Name: "gpu",
		CPUs: 1,
		GPUs: 1,
		Fn:   func(context.Context, Inputs) (any, error) { return nil, nil },
	}); err == nil {
		t.Fatalf("Submit() expected error for gpu request over capacity")
	}
}

func TestSubmitValidation(t *testing.T) {
	rt := newTestRuntime(t, Config{CPUs: 1})

	if _, err := rt.Submit(context.Background(), Submission{CPUs: 1, Fn: func(context.Context, Inputs) (any, error) { return nil, nil }}); err == nil {
		t.Fatalf("Submit() expected error for missing name")
	}
	if _, err := rt.Submit(context.Background(), Submission{Name: "x", CPUs: 1}); err == nil {
		t.Fatalf("Submit() expected error for missing fn")
	}
	if _, err := rt.Submit(context.Background(), Submission{Name: "x", CPUs: 0, Fn: func(context.Context, Inputs) (any, error) { return nil, nil }}); err == nil {
		t.Fatalf("Submit() expected error for zero cpus")
	}
}

func TestShutdownWaitsForTasks(t *testing.T) {
	rt := NewLocal(Config{CPUs: 1}, nil)

	h, err := rt.Submit(context.Background(), Submission{
		Name: "work",
		CPUs: 1,
		Fn: func(context.Context, Inputs) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "done", nil
		},
	})
	if err != nil {
		t.Fatalf("Submit() err=%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() err=%v", err)
	}
	if !h.Resolved() {
		t.Fatalf("task not resolved after shutdown")
	}
	if _, err := rt.Submit(context.Background(), Submission{
		Name: "late",
		CPUs: 1,
		Fn:   func(context.Context, Inputs) (any, error) { return nil, nil },
	}); err == nil {
		t.Fatalf("Submit() expected error after shutdown")
	}
}
