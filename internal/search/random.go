package search

import (
	"fmt"
	"math/rand"
)

// Random samples a fixed number of trials uniformly from the search axes
// with a seeded generator, so a rerun with the same seed reproduces the
// same trials.
type Random struct {
	trials int
	seed   int64
}

func NewRandom(trials int, seed int64) (Random, error) {
	if trials < 1 {
		return Random{}, fmt.Errorf("random search needs trials >= 1, got %d", trials)
	}
	return Random{trials: trials, seed: seed}, nil
}

func (Random) Name() string { return "random" }

func (r Random) Expand(space Space) ([]map[string]any, error) {
	keys := space.axisKeys()
	for _, key := range keys {
		if len(space.Axes[key]) == 0 {
			return nil, fmt.Errorf("axis %q is empty", key)
		}
	}

	rng := rand.New(rand.NewSource(r.seed))
	trials := make([]map[string]any, 0, r.trials)
	for i := 0; i < r.trials; i++ {
		choices := make(map[string]any, len(keys))
		for _, key := range keys {
			axis := space.Axes[key]
			choices[key] = axis[rng.Intn(len(axis))]
		}
		trials = append(trials, space.trial(choices))
	}
	return trials, nil
}
