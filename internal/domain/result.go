package domain

import (
	"fmt"
	"time"
)

// TrialResult is the outcome of one hyperparameter trial within a stage.
type TrialResult struct {
	ID      string         `json:"trial_id"`
	Params  map[string]any `json:"params"`
	Metric  float64        `json:"metric"`
	Outputs map[string]any `json:"outputs,omitempty"`
}

// StageResult is the payload a completed stage resolves to. It is what
// downstream stages receive as their dependency input. Trials reflect the
// post-reduction set.
type StageResult struct {
	Stage      string        `json:"stage"`
	RunID      string        `json:"run_id"`
	Trials     []TrialResult `json:"trials"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Best returns the trial with the highest metric.
func (r StageResult) Best() (TrialResult, bool) {
	if len(r.Trials) == 0 {
		return TrialResult{}, false
	}
	best := r.Trials[0]
	for _, t := range r.Trials[1:] {
		if t.Metric > best.Metric {
			best = t
		}
	}
	return best, true
}

// Output resolves a link key against the best trial. An empty key yields the
// trial's params, letting "@{stage}" expand to the winning configuration.
func (r StageResult) Output(key string) (any, error) {
	best, ok := r.Best()
	if !ok {
		return nil, fmt.Errorf("stage %q produced no trials", r.Stage)
	}
	if key == "" {
		return best.Params, nil
	}
	if v, ok := best.Outputs[key]; ok {
		return v, nil
	}
	if v, ok := best.Params[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("stage %q has no output %q", r.Stage, key)
}
