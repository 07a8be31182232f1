package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

func TestProblemCreateDefaultsAndConflict(t *testing.T) {
	repo := newFakeProblemRepo()
	svc := NewProblemService(repo, zap.NewNop())
	ctx := context.Background()

	p, err := svc.Create(ctx, model.ProblemRequest{Title: strPtr("Hello World")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Slug != "hello-world" || p.TimeLimit != model.DefaultTimeLimit || p.MemoryLimit != model.DefaultMemoryLimit || p.Type != model.ProblemTypeStandard {
		t.Fatalf("problem = %+v", p)
	}

	if _, err := svc.Create(ctx, model.ProblemRequest{Title: strPtr("Hello world")}); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("duplicate: err = %v", err)
	}
	if _, err := svc.Create(ctx, model.ProblemRequest{}); common.HTTPStatusFromError(err) != 400 {
		t.Fatalf("missing title: err = %v", err)
	}
}

func TestProblemRenameConflictKeepsOriginal(t *testing.T) {
	repo := newFakeProblemRepo(
		model.Problem{ID: 1, Slug: "a", Title: "A"},
		model.Problem{ID: 2, Slug: "b", Title: "B"},
	)
	svc := NewProblemService(repo, zap.NewNop())

	if _, err := svc.Update(context.Background(), "a", model.ProblemRequest{Slug: strPtr("b"), Title: strPtr("changed")}); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("err = %v", err)
	}
	if got := repo.problems[1]; got.Slug != "a" || got.Title != "A" {
		t.Fatalf("problem changed: %+v", got)
	}
}

func TestProblemVisibility(t *testing.T) {
	repo := newFakeProblemRepo(
		model.Problem{ID: 1, Slug: "open", IsPublic: true, Checker: strPtr("checker.cpp")},
		model.Problem{ID: 2, Slug: "hidden"},
	)
	svc := NewProblemService(repo, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Get(ctx, userA, "hidden"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("hidden: err = %v", err)
	}
	v, err := svc.Get(ctx, userA, "open")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := v.(model.PublicProblem); !ok {
		t.Fatalf("user view = %#v", v)
	}
	if v, _ := svc.Get(ctx, admin, "hidden"); v == nil {
		t.Fatal("admin cannot see hidden problem")
	}

	list, err := svc.List(ctx, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := list.([]model.PublicProblem); len(got) != 1 || got[0].Slug != "open" {
		t.Fatalf("public list = %+v", got)
	}
	all, _ := svc.List(ctx, admin)
	if got := all.([]model.Problem); len(got) != 2 {
		t.Fatalf("admin list = %d", len(got))
	}
}

func TestProblemJudgeResources(t *testing.T) {
	repo := newFakeProblemRepo(model.Problem{
		ID: 1, Slug: "sum", Type: model.ProblemTypeStandard, Limits: model.DefaultLimits(),
		Checker:   strPtr("int main() {}"),
		TestCases: []model.TestCase{{Input: "1.in", Output: "1.out"}, {Input: "2.in", Output: "2.out"}},
	})
	svc := NewProblemService(repo, zap.NewNop())
	ctx := context.Background()

	if src, err := svc.Checker(ctx, "sum"); err != nil || src != "int main() {}" {
		t.Fatalf("Checker = %q, %v", src, err)
	}
	if _, err := svc.Interactor(ctx, "sum"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("Interactor err = %v", err)
	}

	out, err := svc.Metadata(ctx, "sum")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if !strings.Contains(string(out), "problem_name: sum") {
		t.Fatalf("metadata:\n%s", out)
	}
	var meta model.ProblemMetadata
	if err := yaml.Unmarshal(out, &meta); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(meta.TestCases) != 2 || meta.TestCases[1].Output != "2.out" || meta.Limits.MemoryLimit != model.DefaultMemoryLimit {
		t.Fatalf("metadata = %+v", meta)
	}

	tcs, err := svc.SetTestCases(ctx, "sum", model.TestCasesRequest{TestCases: []model.TestCase{{Input: "a", Output: "b"}}})
	if err != nil || len(tcs) != 1 {
		t.Fatalf("SetTestCases = %v, %v", tcs, err)
	}
	if got, _ := svc.TestCases(ctx, "sum"); len(got) != 1 || got[0].Input != "a" {
		t.Fatalf("TestCases = %+v", got)
	}
}
