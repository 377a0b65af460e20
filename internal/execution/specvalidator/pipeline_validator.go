package specvalidator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ember-labs/ember-go/internal/domain"
)

var stageName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidatePipelineSpec performs strict upfront validation of a PipelineSpec:
// stage names are unique and well formed, every link targets a declared
// stage, no stage links to itself, and the link graph is acyclic. It runs
// before any submission so configuration errors never reach the substrate.
func ValidatePipelineSpec(spec domain.PipelineSpec) error {
	issues := &ValidationError{}

	if len(spec.Stages) == 0 {
		issues.Add("pipeline must declare at least one stage")
		return issues.OrNil()
	}

	declared := make(map[string]struct{}, len(spec.Stages))
	for i, stage := range spec.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			issues.Add(fmt.Sprintf("stage[%d] name is required", i))
			continue
		}
		if !stageName.MatchString(name) {
			issues.Add(fmt.Sprintf("stage name %q contains invalid characters", name))
		}
		if _, exists := declared[name]; exists {
			issues.Add(fmt.Sprintf("duplicate stage name %q", name))
		}
		declared[name] = struct{}{}
	}

	adj := make(map[string][]string, len(declared))
	for _, stage := range spec.Stages {
		for _, dep := range stage.LinkedStages() {
			if dep == stage.Name {
				issues.Add(fmt.Sprintf("stage %q links to itself", stage.Name))
				continue
			}
			if _, ok := declared[dep]; !ok {
				issues.AddCause(
					fmt.Sprintf("stage %q links to undeclared stage %q", stage.Name, dep),
					domain.ErrUnknownReference,
				)
				continue
			}
			adj[dep] = append(adj[dep], stage.Name)
		}
	}

	if hasCycle(adj, declared) {
		issues.Add("stage links form a cycle")
	}

	return issues.OrNil()
}

func hasCycle(adj map[string][]string, nodes map[string]struct{}) bool {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))

	var visit func(string) bool
	visit = func(n string) bool {
		switch state[n] {
		case inStack:
			return true
		case done:
			return false
		}
		state[n] = inStack
		for _, next := range adj[n] {
			if visit(next) {
				return true
			}
		}
		state[n] = done
		return false
	}

	for n := range nodes {
		if visit(n) {
			return true
		}
	}
	return false
}
