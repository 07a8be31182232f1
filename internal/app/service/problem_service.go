package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"judge_zone/internal/app/access"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	log         *zap.Logger
}

func NewProblemService(problemRepo repository.ProblemRepository, log *zap.Logger) *ProblemService {
	return &ProblemService{problemRepo: problemRepo, log: log}
}

// List returns full records to admins and public views to everyone else.
func (s *ProblemService) List(ctx context.Context, actor *access.Actor) (any, error) {
	if actor.IsAdmin() {
		return s.problemRepo.ListProblems(ctx, false)
	}
	problems, err := s.problemRepo.ListProblems(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicProblem, 0, len(problems))
	for i := range problems {
		out = append(out, problems[i].Public())
	}
	return out, nil
}

// Find loads a problem the actor may see. Hidden problems are reported as
// not found.
func (s *ProblemService) Find(ctx context.Context, actor *access.Actor, slug string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !access.CanViewProblem(actor, problem) {
		return nil, common.ErrNotFound
	}
	return problem, nil
}

func (s *ProblemService) Get(ctx context.Context, actor *access.Actor, slug string) (any, error) {
	problem, err := s.Find(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return problem, nil
	}
	return problem.Public(), nil
}

func (s *ProblemService) Create(ctx context.Context, req model.ProblemRequest) (*model.Problem, error) {
	if err := req.ValidateCreate(); err != nil {
		return nil, err
	}
	problem := req.NewProblem()
	if problem.Slug == "" {
		return nil, fmt.Errorf("cannot derive a slug from the title: %w", common.ErrBadRequest)
	}
	if err := s.problemRepo.CreateProblem(ctx, nil, problem); err != nil {
		return nil, err
	}
	s.log.Info("problem created", zap.Int64("problem_id", problem.ID), zap.String("slug", problem.Slug))
	return problem, nil
}

// Update applies a partial edit. A slug clash leaves the stored problem as
// it was.
func (s *ProblemService) Update(ctx context.Context, slug string, req model.ProblemRequest) (*model.Problem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	req.Apply(problem)
	if err := s.problemRepo.UpdateProblem(ctx, nil, problem); err != nil {
		return nil, err
	}
	return problem, nil
}

func (s *ProblemService) Delete(ctx context.Context, slug string) error {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.problemRepo.DeleteProblem(ctx, problem.ID); err != nil {
		return err
	}
	s.log.Info("problem deleted", zap.Int64("problem_id", problem.ID), zap.String("slug", slug))
	return nil
}

func (s *ProblemService) TestCases(ctx context.Context, slug string) ([]model.TestCase, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return problem.TestCases, nil
}

func (s *ProblemService) SetTestCases(ctx context.Context, slug string, req model.TestCasesRequest) ([]model.TestCase, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	problem.TestCases = req.TestCases
	if err := s.problemRepo.UpdateProblem(ctx, nil, problem); err != nil {
		return nil, err
	}
	return problem.TestCases, nil
}

func (s *ProblemService) Checker(ctx context.Context, slug string) (string, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if problem.Checker == nil {
		return "", fmt.Errorf("problem %s has no checker: %w", slug, common.ErrNotFound)
	}
	return *problem.Checker, nil
}

func (s *ProblemService) Interactor(ctx context.Context, slug string) (string, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if problem.Interactor == nil {
		return "", fmt.Errorf("problem %s has no interactor: %w", slug, common.ErrNotFound)
	}
	return *problem.Interactor, nil
}

// Metadata renders the YAML document the judge worker reads before running
// a submission.
func (s *ProblemService) Metadata(ctx context.Context, slug string) ([]byte, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(problem.Metadata())
	if err != nil {
		return nil, fmt.Errorf("ProblemService.Metadata: %w", err)
	}
	return out, nil
}
