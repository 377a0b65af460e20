// Package config loads experiment files. The pipeline section is decoded
// through yaml.Node rather than a map so stage declaration order survives
// parsing; that order is the submission order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ember-labs/ember-go/internal/domain"
)

type experimentFile struct {
	Name      string                  `yaml:"name"`
	SavePath  string                  `yaml:"save_path"`
	Debug     bool                    `yaml:"debug"`
	Pipeline  yaml.Node               `yaml:"pipeline"`
	Algorithm map[string]algorithmRaw `yaml:"algorithm"`
	Reduce    map[string]int          `yaml:"reduce"`
	Resources map[string]resourcesRaw `yaml:"resources"`
}

type stageRaw struct {
	Component string         `yaml:"component"`
	Script    string         `yaml:"script"`
	Args      []string       `yaml:"args"`
	Params    map[string]any `yaml:"params"`
}

type algorithmRaw struct {
	Type   string `yaml:"type"`
	Trials int    `yaml:"trials"`
	Seed   int64  `yaml:"seed"`
}

type resourcesRaw struct {
	CPUs int `yaml:"cpus"`
	GPUs int `yaml:"gpus"`
}

// LoadExperiment reads and parses an experiment file.
func LoadExperiment(path string) (domain.Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Experiment{}, fmt.Errorf("read experiment file: %w", err)
	}
	exp, err := ParseExperiment(raw)
	if err != nil {
		return domain.Experiment{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return exp, nil
}

// ParseExperiment decodes an experiment document.
func ParseExperiment(raw []byte) (domain.Experiment, error) {
	var file experimentFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Experiment{}, fmt.Errorf("decode experiment: %w", err)
	}

	pipeline, err := decodePipeline(&file.Pipeline)
	if err != nil {
		return domain.Experiment{}, err
	}

	exp := domain.Experiment{
		Name:     strings.TrimSpace(file.Name),
		SavePath: strings.TrimSpace(file.SavePath),
		Debug:    file.Debug,
		Pipeline: pipeline,
	}
	if len(file.Algorithm) > 0 {
		exp.Algorithms = make(map[string]domain.AlgorithmSpec, len(file.Algorithm))
		for stage, a := range file.Algorithm {
			exp.Algorithms[stage] = domain.AlgorithmSpec{Type: a.Type, Trials: a.Trials, Seed: a.Seed}
		}
	}
	if len(file.Reduce) > 0 {
		exp.Reductions = file.Reduce
	}
	if len(file.Resources) > 0 {
		exp.Budgets = make(domain.ResourceBudgets, len(file.Resources))
		for stage, r := range file.Resources {
			exp.Budgets[stage] = domain.Budget{CPUs: r.CPUs, GPUs: r.GPUs}
		}
	}

	if err := exp.Validate(); err != nil {
		return domain.Experiment{}, err
	}
	return exp, nil
}

func decodePipeline(node *yaml.Node) (domain.PipelineSpec, error) {
	if node == nil || node.Kind == 0 || node.IsZero() {
		return domain.PipelineSpec{}, errors.New("pipeline section is required")
	}
	if node.Kind != yaml.MappingNode {
		return domain.PipelineSpec{}, errors.New("pipeline must be a mapping of stage name to stage spec")
	}

	spec := domain.PipelineSpec{Stages: make([]domain.StageSpec, 0, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		name := strings.TrimSpace(keyNode.Value)
		if name == "" {
			return domain.PipelineSpec{}, fmt.Errorf("pipeline stage %d has an empty name", i/2)
		}

		var raw stageRaw
		if err := valueNode.Decode(&raw); err != nil {
			return domain.PipelineSpec{}, fmt.Errorf("decode stage %q: %w", name, err)
		}
		spec.Stages = append(spec.Stages, domain.StageSpec{
			Name:      name,
			Component: strings.TrimSpace(raw.Component),
			Script:    strings.TrimSpace(raw.Script),
			Args:      raw.Args,
			Params:    raw.Params,
		})
	}
	return spec, nil
}
