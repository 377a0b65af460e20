package stage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ember-labs/ember-go/internal/domain"
)

// Trial is one concrete parameter assignment executed inside a stage.
type Trial struct {
	ID     string
	Stage  string
	Index  int
	Params map[string]any
	Dir    string
}

// Outcome is what one trial produces: a scalar metric used for reduction
// and named outputs downstream stages can link to.
type Outcome struct {
	Metric  float64
	Outputs map[string]any
}

// Computable executes a single trial. Implementations vary by stage
// configuration, not by subtype: the registry maps a component name to a
// factory bound to the stage's spec.
type Computable interface {
	Run(ctx context.Context, trial Trial, env domain.Environment) (Outcome, error)
}

// Factory builds a Computable for one stage spec.
type Factory func(spec domain.StageSpec) (Computable, error)

// Registry maps component names to computable factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the "noop" component.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("noop", func(domain.StageSpec) (Computable, error) {
		return noop{}, nil
	})
	return r
}

func (r *Registry) Register(name string, factory Factory) {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Build resolves a stage spec to its computable. A spec with a script path
// and no explicit component defaults to "script"; otherwise "noop".
func (r *Registry) Build(spec domain.StageSpec) (Computable, error) {
	name := strings.TrimSpace(spec.Component)
	if name == "" {
		if strings.TrimSpace(spec.Script) != "" {
			name = "script"
		} else {
			name = "noop"
		}
	}
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown component %q for stage %q", name, spec.Name)
	}
	return factory(spec)
}

// noop completes immediately with a zero metric. It exists so pipelines can
// declare synchronization-only stages.
type noop struct{}

func (noop) Run(_ context.Context, trial Trial, _ domain.Environment) (Outcome, error) {
	return Outcome{Outputs: map[string]any{"dir": trial.Dir}}, nil
}
