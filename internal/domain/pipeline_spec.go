package domain

import (
	"regexp"
	"strings"
)

// PipelineSpec is an ordered mapping from stage name to stage specification.
// Declaration order is meaningful: it is the order stages are submitted in,
// and every stage must appear after the stages it links to.
type PipelineSpec struct {
	Stages []StageSpec
}

// StageSpec describes one named unit of the pipeline. Params hold the
// hyperparameter space: a scalar is a fixed value, a list is a search axis,
// and a string of the form "@{stage}" or "@{stage.key}" links to another
// stage's output.
type StageSpec struct {
	Name      string
	Component string
	Script    string
	Args      []string
	Params    map[string]any
}

var linkExpr = regexp.MustCompile(`@\{([A-Za-z0-9_-]+)(?:\.([A-Za-z0-9_.-]+))?\}`)

// Stage returns the stage with the given name.
func (p PipelineSpec) Stage(name string) (StageSpec, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageSpec{}, false
}

// Has reports whether a stage with the given name is declared.
func (p PipelineSpec) Has(name string) bool {
	_, ok := p.Stage(name)
	return ok
}

// StageNames returns the stage names in declaration order.
func (p PipelineSpec) StageNames() []string {
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	return names
}

// LinkedStages enumerates the stage names this stage links to, in order of
// first appearance, without duplicates. The stage itself is never included.
func (s StageSpec) LinkedStages() []string {
	seen := make(map[string]struct{})
	var out []string
	visit := func(name string) {
		if name == s.Name {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, value := range s.Params {
		for _, name := range linkedStagesIn(value) {
			visit(name)
		}
	}
	for _, arg := range s.Args {
		for _, m := range linkExpr.FindAllStringSubmatch(arg, -1) {
			visit(m[1])
		}
	}
	return out
}

func linkedStagesIn(value any) []string {
	switch v := value.(type) {
	case string:
		var names []string
		for _, m := range linkExpr.FindAllStringSubmatch(v, -1) {
			names = append(names, m[1])
		}
		return names
	case []any:
		var names []string
		for _, item := range v {
			names = append(names, linkedStagesIn(item)...)
		}
		return names
	default:
		return nil
	}
}

// ParseLink splits a link expression into its stage name and optional output
// key. It returns ok=false when the value is not a single bare link.
func ParseLink(value string) (stage, key string, ok bool) {
	value = strings.TrimSpace(value)
	m := linkExpr.FindStringSubmatch(value)
	if m == nil || m[0] != value {
		return "", "", false
	}
	return m[1], m[2], true
}

// ContainsLink reports whether the string holds at least one link expression.
func ContainsLink(value string) bool {
	return linkExpr.MatchString(value)
}

// ExpandLinks rewrites every link expression in value through fn. When fn
// reports ok=false the expression is left untouched.
func ExpandLinks(value string, fn func(stage, key string) (string, bool)) string {
	return linkExpr.ReplaceAllStringFunc(value, func(match string) string {
		m := linkExpr.FindStringSubmatch(match)
		if out, ok := fn(m[1], m[2]); ok {
			return out
		}
		return match
	})
}
