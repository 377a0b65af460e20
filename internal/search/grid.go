package search

import "fmt"

// Grid is the default algorithm: the exhaustive cartesian product of every
// search axis. A space without axes yields a single trial.
type Grid struct{}

func (Grid) Name() string { return "grid" }

func (Grid) Expand(space Space) ([]map[string]any, error) {
	keys := space.axisKeys()
	for _, key := range keys {
		if len(space.Axes[key]) == 0 {
			return nil, fmt.Errorf("axis %q is empty", key)
		}
	}

	trials := []map[string]any{space.trial(nil)}
	for _, key := range keys {
		axis := space.Axes[key]
		next := make([]map[string]any, 0, len(trials)*len(axis))
		for _, trial := range trials {
			for _, value := range axis {
				expanded := make(map[string]any, len(trial)+1)
				for k, v := range trial {
					expanded[k] = v
				}
				expanded[key] = value
				next = append(next, expanded)
			}
		}
		trials = next
	}
	return trials, nil
}
