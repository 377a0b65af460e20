package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Handle identifies a submitted, possibly still running unit of work. It
// carries no value at submission time; resolution is owned by the substrate.
// A handle is both a join target and a dependency input for later
// submissions.
type Handle struct {
	id   string
	name string

	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

// NewHandle creates an unresolved handle. Substrate implementations resolve
// it exactly once.
func NewHandle(name string) *Handle {
	return &Handle{
		id:   uuid.NewString(),
		name: name,
		done: make(chan struct{}),
	}
}

// NewResolvedHandle creates an already-resolved handle. Useful for substrate
// fakes in tests.
func NewResolvedHandle(name string, result any, err error) *Handle {
	h := NewHandle(name)
	h.Resolve(result, err)
	return h
}

func (h *Handle) ID() string   { return h.id }
func (h *Handle) Name() string { return h.name }

// Done is closed once the task has resolved, successfully or not.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Resolve records the task outcome and releases all waiters. Subsequent
// calls are no-ops.
func (h *Handle) Resolve(result any, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}

// Await blocks until the handle resolves or the context is canceled.
func (h *Handle) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

// Resolved reports whether the handle has resolved.
func (h *Handle) Resolved() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Join blocks until every handle resolves, surfacing the first failure as a
// *Failure and abandoning the wait on the remaining handles.
func Join(ctx context.Context, handles []*Handle) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if _, err := h.Await(ctx); err != nil {
				return &Failure{TaskName: h.name, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}
