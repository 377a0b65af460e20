package graph

import (
	"fmt"
	"sort"

	"github.com/ember-labs/ember-go/internal/domain"
)

// PipelineGraph is the dependency view of a validated PipelineSpec. It is
// immutable after construction and safe for concurrent reads.
type PipelineGraph struct {
	spec       domain.PipelineSpec
	deps       map[string][]string
	dependents map[string][]string
}

// Build computes per-stage dependency sets from the link expressions in the
// spec. The spec must already have passed validation; a link to an
// undeclared stage fails with ErrUnknownReference.
func Build(spec domain.PipelineSpec) (*PipelineGraph, error) {
	g := &PipelineGraph{
		spec:       spec,
		deps:       make(map[string][]string, len(spec.Stages)),
		dependents: make(map[string][]string, len(spec.Stages)),
	}
	for _, stage := range spec.Stages {
		g.deps[stage.Name] = nil
		if _, ok := g.dependents[stage.Name]; !ok {
			g.dependents[stage.Name] = nil
		}
	}
	for _, stage := range spec.Stages {
		for _, dep := range stage.LinkedStages() {
			if !spec.Has(dep) {
				return nil, fmt.Errorf("%w: stage %q links to %q", domain.ErrUnknownReference, stage.Name, dep)
			}
			g.deps[stage.Name] = append(g.deps[stage.Name], dep)
			g.dependents[dep] = append(g.dependents[dep], stage.Name)
		}
	}
	return g, nil
}

// DependenciesOf returns the names of the stages whose output the given
// stage consumes, in order of first reference.
func (g *PipelineGraph) DependenciesOf(stage string) ([]string, error) {
	deps, ok := g.deps[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownReference, stage)
	}
	out := make([]string, len(deps))
	copy(out, deps)
	return out, nil
}

// DependentsOf returns the names of the stages that consume the given
// stage's output.
func (g *PipelineGraph) DependentsOf(stage string) ([]string, error) {
	dependents, ok := g.dependents[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownReference, stage)
	}
	out := make([]string, len(dependents))
	copy(out, dependents)
	return out, nil
}

// SubPipeline returns the spec restricted to a stage and its transitive
// inputs, preserving the original declaration order.
func (g *PipelineGraph) SubPipeline(stage string) (domain.PipelineSpec, error) {
	if _, ok := g.deps[stage]; !ok {
		return domain.PipelineSpec{}, fmt.Errorf("%w: %q", domain.ErrUnknownReference, stage)
	}

	keep := map[string]struct{}{stage: {}}
	frontier := []string{stage}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, dep := range g.deps[current] {
			if _, ok := keep[dep]; ok {
				continue
			}
			keep[dep] = struct{}{}
			frontier = append(frontier, dep)
		}
	}

	sub := domain.PipelineSpec{Stages: make([]domain.StageSpec, 0, len(keep))}
	for _, s := range g.spec.Stages {
		if _, ok := keep[s.Name]; ok {
			sub.Stages = append(sub.Stages, s)
		}
	}
	return sub, nil
}

// TopoOrder returns a deterministic topological ordering of all stages,
// or an error when the link graph contains a cycle.
func (g *PipelineGraph) TopoOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.deps))
	for name := range g.deps {
		inDegree[name] = len(g.deps[name])
	}

	ready := make([]string, 0, len(inDegree))
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, name)
		for _, dependent := range g.dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				sort.Strings(ready)
			}
		}
	}

	if len(ordered) != len(inDegree) {
		return nil, fmt.Errorf("stage links form a cycle")
	}
	return ordered, nil
}

// ValidateDeclaredOrder checks that every stage appears after all of its
// dependencies in the spec's declaration order. The scheduler submits in
// declared order and relies on this instead of repairing the ordering.
func (g *PipelineGraph) ValidateDeclaredOrder() error {
	seen := make(map[string]struct{}, len(g.spec.Stages))
	for _, stage := range g.spec.Stages {
		for _, dep := range g.deps[stage.Name] {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("%w: stage %q declared before its dependency %q", domain.ErrUnresolvedDependency, stage.Name, dep)
			}
		}
		seen[stage.Name] = struct{}{}
	}
	return nil
}
