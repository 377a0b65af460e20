package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ember-labs/ember-go/internal/domain"
)

func diamondSpec() domain.PipelineSpec {
	return domain.PipelineSpec{Stages: []domain.StageSpec{
		{Name: "prep", Params: map[string]any{"size": 100}},
		{Name: "train", Params: map[string]any{"data": "@{prep.dir}"}},
		{Name: "tune", Params: map[string]any{"data": "@{prep.dir}"}},
		{Name: "eval", Params: map[string]any{
			"model":     "@{train.model_path}",
			"candidate": "@{tune.model_path}",
		}},
	}}
}

func TestDependenciesOf(t *testing.T) {
	g, err := Build(diamondSpec())
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}

	cases := map[string][]string{
		"prep":  {},
		"train": {"prep"},
		"tune":  {"prep"},
		"eval":  {"train", "tune"},
	}
	for stage, want := range cases {
		got, err := g.DependenciesOf(stage)
		if err != nil {
			t.Fatalf("DependenciesOf(%q) err=%v", stage, err)
		}
		if len(got) != len(want) {
			t.Fatalf("DependenciesOf(%q)=%v, want %v", stage, got, want)
		}
		wantSet := make(map[string]bool, len(want))
		for _, name := range want {
			wantSet[name] = true
		}
		for _, name := range got {
			if !wantSet[name] {
				t.Fatalf("DependenciesOf(%q)=%v, want %v", stage, got, want)
			}
			if name == stage {
				t.Fatalf("DependenciesOf(%q) must not include the stage itself", stage)
			}
		}
	}
}

func TestDependenciesOfUnknownStage(t *testing.T) {
	g, err := Build(diamondSpec())
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if _, err := g.DependenciesOf("missing"); !errors.Is(err, domain.ErrUnknownReference) {
		t.Fatalf("DependenciesOf() err=%v, want ErrUnknownReference", err)
	}
}

func TestBuildUnknownReference(t *testing.T) {
	spec := domain.PipelineSpec{Stages: []domain.StageSpec{
		{Name: "train", Params: map[string]any{"data": "@{Z.dir}"}},
	}}
	if _, err := Build(spec); !errors.Is(err, domain.ErrUnknownReference) {
		t.Fatalf("Build() err=%v, want ErrUnknownReference", err)
	}
}

func TestSubPipeline(t *testing.T) {
	g, err := Build(diamondSpec())
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}

	sub, err := g.SubPipeline("train")
	if err != nil {
		t.Fatalf("SubPipeline() err=%v", err)
	}
	if got, want := sub.StageNames(), []string{"prep", "train"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SubPipeline(train)=%v, want %v", got, want)
	}

	sub, err = g.SubPipeline("eval")
	if err != nil {
		t.Fatalf("SubPipeline() err=%v", err)
	}
	if got, want := sub.StageNames(), []string{"prep", "train", "tune", "eval"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SubPipeline(eval)=%v, want %v", got, want)
	}

	sub, err = g.SubPipeline("prep")
	if err != nil {
		t.Fatalf("SubPipeline() err=%v", err)
	}
	if got, want := sub.StageNames(), []string{"prep"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SubPipeline(prep)=%v, want %v", got, want)
	}
}

func TestTopoOrder(t *testing.T) {
	g, err := Build(diamondSpec())
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatalf("TopoOrder() err=%v", err)
	}

	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}
	for stage, deps := range map[string][]string{
		"train": {"prep"},
		"tune":  {"prep"},
		"eval":  {"train", "tune"},
	} {
		for _, dep := range deps {
			if position[dep] >= position[stage] {
				t.Fatalf("TopoOrder()=%v places %q after %q", order, dep, stage)
			}
		}
	}
}

func TestValidateDeclaredOrder(t *testing.T) {
	g, err := Build(diamondSpec())
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if err := g.ValidateDeclaredOrder(); err != nil {
		t.Fatalf("ValidateDeclaredOrder() err=%v", err)
	}
}

func TestValidateDeclaredOrderViolation(t *testing.T) {
	spec := domain.PipelineSpec{Stages: []domain.StageSpec{
		{Name: "train", Params: map[string]any{"data": "@{prep.dir}"}},
		{Name: "prep"},
	}}
	g, err := Build(spec)
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if err := g.ValidateDeclaredOrder(); !errors.Is(err, domain.ErrUnresolvedDependency) {
		t.Fatalf("ValidateDeclaredOrder() err=%v, want ErrUnresolvedDependency", err)
	}
}

func TestDependentsOf(t *testing.T) {
	g, err := Build(diamondSpec())
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	got, err := g.DependentsOf("prep")
	if err != nil {
		t.Fatalf("DependentsOf() err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("DependentsOf(prep)=%v, want train and tune", got)
	}
}
