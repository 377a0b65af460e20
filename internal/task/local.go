package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Config sizes the local runtime's advisory resource pools.
type Config struct {
	CPUs int
	GPUs int
}

func (c Config) withDefaults() Config {
	if c.CPUs <= 0 {
		c.CPUs = runtime.NumCPU()
	}
	if c.GPUs < 0 {
		c.GPUs = 0
	}
	return c
}

// Local runs each submitted task on its own goroutine. A task first awaits
// its dependency handles, then acquires CPU/GPU capacity, then runs. A
// failed dependency fails the task without running its body.
type Local struct {
	logger *slog.Logger
	cfg    Config
	cpus   *semaphore.Weighted
	gpus   *semaphore.Weighted

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocal initializes the local substrate. Callers own the lifecycle and
// must Shutdown it once the run completes.
func NewLocal(cfg Config, logger *slog.Logger) *Local {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Local{
		logger:  logger,
		cfg:     cfg,
		cpus:    semaphore.NewWeighted(int64(cfg.CPUs)),
		baseCtx: ctx,
		cancel:  cancel,
	}
	if cfg.GPUs > 0 {
		l.gpus = semaphore.NewWeighted(int64(cfg.GPUs))
	}
	return l
}

// Submit registers a unit of work and returns its handle immediately.
func (l *Local) Submit(ctx context.Context, sub Submission) (*Handle, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sub.CPUs > l.cfg.CPUs {
		return nil, fmt.Errorf("submission %q requests %d cpus, runtime has %d", sub.Name, sub.CPUs, l.cfg.CPUs)
	}
	if sub.GPUs > l.cfg.GPUs {
		return nil, fmt.Errorf("submission %q requests %d gpus, runtime has %d", sub.Name, sub.GPUs, l.cfg.GPUs)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.New("runtime is shut down")
	}
	l.wg.Add(1)
	l.mu.Unlock()

	h := NewHandle(sub.Name)
	go l.run(sub, h)
	return h, nil
}

func (l *Local) run(sub Submission, h *Handle) {
	defer l.wg.Done()

	inputs := make(Inputs, len(sub.Dependencies))
	for _, dep := range sub.Dependencies {
		result, err := dep.Await(l.baseCtx)
		if err != nil {
			h.Resolve(nil, fmt.Errorf("dependency %q failed: %w", dep.Name(), err))
			return
		}
		inputs[dep.Name()] = result
	}

	if err := l.acquire(sub); err != nil {
		h.Resolve(nil, err)
		return
	}
	defer l.release(sub)

	l.logger.Debug("task started", "task", sub.Name, "cpus", sub.CPUs, "gpus", sub.GPUs)
	result, err := sub.Fn(l.baseCtx, inputs)
	if err != nil {
		l.logger.Debug("task failed", "task", sub.Name, "error", err)
	} else {
		l.logger.Debug("task finished", "task", sub.Name)
	}
	h.Resolve(result, err)
}

func (l *Local) acquire(sub Submission) error {
	if err := l.cpus.Acquire(l.baseCtx, int64(sub.CPUs)); err != nil {
		return fmt.Errorf("acquire cpus: %w", err)
	}
	if sub.GPUs > 0 {
		if err := l.gpus.Acquire(l.baseCtx, int64(sub.GPUs)); err != nil {
			l.cpus.Release(int64(sub.CPUs))
			return fmt.Errorf("acquire gpus: %w", err)
		}
	}
	return nil
}

func (l *Local) release(sub Submission) {
	if sub.GPUs > 0 {
		l.gpus.Release(int64(sub.GPUs))
	}
	l.cpus.Release(int64(sub.CPUs))
}

// Shutdown stops accepting submissions and waits for in-flight tasks. When
// the context expires first, remaining tasks are canceled.
func (l *Local) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.cancel()
		<-done
		return ctx.Err()
	}
}
