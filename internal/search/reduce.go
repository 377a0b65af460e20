package search

import (
	"sort"

	"github.com/ember-labs/ember-go/internal/domain"
)

// Reduce narrows a stage's trial results to the k best by metric. A k of
// zero means no reduction; ties keep their original order.
func Reduce(trials []domain.TrialResult, k int) []domain.TrialResult {
	if k <= 0 || k >= len(trials) {
		return trials
	}
	kept := make([]domain.TrialResult, len(trials))
	copy(kept, trials)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Metric > kept[j].Metric
	})
	return kept[:k]
}
