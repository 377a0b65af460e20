// Package script turns an arbitrary external command into a stage
// computable, so existing training code runs unchanged inside a pipeline.
// Trial parameters are flattened into --key value flags, and the command
// reports back by writing a metrics file into its trial directory.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/stage"
)

// MetricsFile is the file a script may write into its trial directory to
// report a metric and named outputs.
const MetricsFile = "metrics.json"

// Step runs one command per trial.
type Step struct {
	command string
	args    []string
}

// NewStep builds a script step from a stage spec.
func NewStep(spec domain.StageSpec) (*Step, error) {
	command := strings.TrimSpace(spec.Script)
	if command == "" {
		return nil, fmt.Errorf("stage %q declares the script component without a script path", spec.Name)
	}
	return &Step{command: command, args: spec.Args}, nil
}

// Factory adapts NewStep to the stage registry.
func Factory(spec domain.StageSpec) (stage.Computable, error) {
	return NewStep(spec)
}

// Run executes the command with the trial's parameters as flags. The trial
// directory, stage name and trial id are injected through the environment.
func (s *Step) Run(ctx context.Context, trial stage.Trial, env domain.Environment) (stage.Outcome, error) {
	args := make([]string, 0, len(s.args)+2*len(trial.Params))
	args = append(args, s.args...)
	args = append(args, flagArgs(trial.Params)...)

	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Env = append(os.Environ(),
		"EMBER_TRIAL_DIR="+trial.Dir,
		"EMBER_STAGE="+trial.Stage,
		"EMBER_TRIAL_ID="+trial.ID,
		"EMBER_DEBUG="+strconv.FormatBool(env.Debug),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return stage.Outcome{}, fmt.Errorf("script %q failed: %w: %s", s.command, err, strings.TrimSpace(string(out)))
	}

	return readOutcome(trial.Dir)
}

// flagArgs flattens trial params into --key value pairs, keys sorted so the
// command line is stable across runs.
func flagArgs(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, "--"+key, fmt.Sprint(params[key]))
	}
	return args
}

// readOutcome loads the optional metrics file. A script that writes none
// reports a zero metric and its trial directory as the only output.
func readOutcome(dir string) (stage.Outcome, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if errors.Is(err, os.ErrNotExist) {
		return stage.Outcome{Outputs: map[string]any{"dir": dir}}, nil
	}
	if err != nil {
		return stage.Outcome{}, fmt.Errorf("read metrics file: %w", err)
	}

	var payload struct {
		Metric  float64        `json:"metric"`
		Outputs map[string]any `json:"outputs"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return stage.Outcome{}, fmt.Errorf("decode metrics file: %w", err)
	}
	if payload.Outputs == nil {
		payload.Outputs = map[string]any{}
	}
	if _, ok := payload.Outputs["dir"]; !ok {
		payload.Outputs["dir"] = dir
	}
	return stage.Outcome{Metric: payload.Metric, Outputs: payload.Outputs}, nil
}
