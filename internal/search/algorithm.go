// Package search provides the hyperparameter search strategies used inside
// a stage. A strategy expands a parameter space into concrete trial
// parameter sets; it knows nothing about scheduling or execution.
package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ember-labs/ember-go/internal/domain"
)

// Space is a stage's parameter space split into search axes (list-valued
// params) and fixed values.
type Space struct {
	Axes  map[string][]any
	Fixed map[string]any
}

// NewSpace splits raw stage params into axes and fixed values. Link
// expressions stay fixed; they are substituted per trial later.
func NewSpace(params map[string]any) Space {
	space := Space{
		Axes:  make(map[string][]any),
		Fixed: make(map[string]any),
	}
	for key, value := range params {
		if list, ok := value.([]any); ok {
			space.Axes[key] = list
			continue
		}
		space.Fixed[key] = value
	}
	return space
}

// axisKeys returns axis names in sorted order so expansion is deterministic.
func (s Space) axisKeys() []string {
	keys := make([]string, 0, len(s.Axes))
	for key := range s.Axes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s Space) trial(choices map[string]any) map[string]any {
	params := make(map[string]any, len(s.Fixed)+len(choices))
	for key, value := range s.Fixed {
		params[key] = value
	}
	for key, value := range choices {
		params[key] = value
	}
	return params
}

// Algorithm expands a parameter space into one parameter set per trial.
type Algorithm interface {
	Name() string
	Expand(space Space) ([]map[string]any, error)
}

// New constructs the algorithm configured for a stage. An unset type means
// exhaustive grid search.
func New(spec domain.AlgorithmSpec) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "", "grid":
		return Grid{}, nil
	case "random":
		return NewRandom(spec.Trials, spec.Seed)
	default:
		return nil, fmt.Errorf("unsupported search algorithm %q", spec.Type)
	}
}
