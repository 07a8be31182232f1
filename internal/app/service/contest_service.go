package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"judge_zone/internal/app/access"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
)

type ContestService struct {
	contestRepo repository.ContestRepository
	problemRepo repository.ProblemRepository
	txRunner    repository.TxRunner
	log         *zap.Logger
	now         func() time.Time
}

func NewContestService(
	contestRepo repository.ContestRepository,
	problemRepo repository.ProblemRepository,
	txRunner repository.TxRunner,
	log *zap.Logger,
) *ContestService {
	return &ContestService{
		contestRepo: contestRepo,
		problemRepo: problemRepo,
		txRunner:    txRunner,
		log:         log,
		now:         time.Now,
	}
}

func (s *ContestService) isRegistered(ctx context.Context, actor *access.Actor, contestID int64) (bool, error) {
	if actor == nil {
		return false, nil
	}
	return s.contestRepo.IsRegistered(ctx, contestID, actor.UserID)
}

func (s *ContestService) List(ctx context.Context, actor *access.Actor) ([]model.Contest, error) {
	filter := repository.ContestListFilter{All: actor.IsAdmin()}
	if actor != nil {
		filter.RegisteredUserID = &actor.UserID
	}
	return s.contestRepo.ListContests(ctx, filter)
}

// find loads a contest the actor may see, with its registration state.
func (s *ContestService) find(ctx context.Context, actor *access.Actor, slug string) (*model.Contest, bool, error) {
	contest, err := s.contestRepo.FindContestBySlug(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	registered, err := s.isRegistered(ctx, actor, contest.ID)
	if err != nil {
		return nil, false, err
	}
	if !access.CanViewContest(actor, contest, registered) {
		return nil, false, common.ErrNotFound
	}
	return contest, registered, nil
}

func (s *ContestService) Get(ctx context.Context, actor *access.Actor, slug string) (*model.Contest, error) {
	contest, _, err := s.find(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	if access.CanViewContestProblems(actor, contest, s.now()) {
		if contest.Problems, err = s.contestRepo.ListContestProblems(ctx, contest.ID); err != nil {
			return nil, err
		}
	}
	return contest, nil
}

// resolveProblems maps problem slugs to ids. An unknown slug is a bad
// request, not a missing contest.
func (s *ContestService) resolveProblems(ctx context.Context, reqs []model.ContestProblemRequest) ([]model.ContestProblem, error) {
	out := make([]model.ContestProblem, 0, len(reqs))
	for _, r := range reqs {
		problem, err := s.problemRepo.FindProblemBySlug(ctx, r.ProblemSlug)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("problem %q does not exist: %w", r.ProblemSlug, common.ErrBadRequest)
			}
			return nil, err
		}
		out = append(out, model.ContestProblem{
			Slug:        r.Slug,
			ProblemID:   problem.ID,
			ProblemSlug: problem.Slug,
			Title:       problem.Title,
		})
	}
	return out, nil
}

// Create stores the contest and its problem list in one transaction.
func (s *ContestService) Create(ctx context.Context, req model.ContestRequest) (*model.Contest, error) {
	if err := req.ValidateCreate(); err != nil {
		return nil, err
	}
	contest := &model.Contest{}
	req.Apply(contest)
	if err := model.ValidateWindow(contest); err != nil {
		return nil, err
	}

	var problems []model.ContestProblem
	if req.Problems != nil {
		var err error
		if problems, err = s.resolveProblems(ctx, *req.Problems); err != nil {
			return nil, err
		}
	}

	err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.contestRepo.CreateContest(ctx, tx, contest); err != nil {
			return err
		}
		return s.contestRepo.ReplaceContestProblems(ctx, tx, contest.ID, problems)
	})
	if err != nil {
		return nil, err
	}

	contest.Problems = problems
	s.log.Info("contest created", zap.Int64("contest_id", contest.ID), zap.String("slug", contest.Slug), zap.Int("problems", len(problems)))
	return contest, nil
}

// Update applies a partial edit. When problems are given they replace the
// current list in the same transaction, so a failure leaves both untouched.
func (s *ContestService) Update(ctx context.Context, slug string, req model.ContestRequest) (*model.Contest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	contest, err := s.contestRepo.FindContestBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	req.Apply(contest)
	if err := model.ValidateWindow(contest); err != nil {
		return nil, err
	}

	var problems []model.ContestProblem
	if req.Problems != nil {
		if problems, err = s.resolveProblems(ctx, *req.Problems); err != nil {
			return nil, err
		}
	}

	err = s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.contestRepo.UpdateContest(ctx, tx, contest); err != nil {
			return err
		}
		if req.Problems == nil {
			return nil
		}
		return s.contestRepo.ReplaceContestProblems(ctx, tx, contest.ID, problems)
	})
	if err != nil {
		return nil, err
	}

	if contest.Problems, err = s.contestRepo.ListContestProblems(ctx, contest.ID); err != nil {
		return nil, err
	}
	return contest, nil
}

func (s *ContestService) Delete(ctx context.Context, slug string) error {
	contest, err := s.contestRepo.FindContestBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.contestRepo.DeleteContest(ctx, contest.ID); err != nil {
		return err
	}
	s.log.Info("contest deleted", zap.Int64("contest_id", contest.ID), zap.String("slug", slug))
	return nil
}

// Register is a no-op for a user already registered.
func (s *ContestService) Register(ctx context.Context, actor *access.Actor, slug string) error {
	if actor == nil {
		return common.ErrUnauthorized
	}
	contest, registered, err := s.find(ctx, actor, slug)
	if err != nil {
		return err
	}
	if !access.CanRegister(actor, contest, registered, s.now()) {
		return fmt.Errorf("contest %s has ended: %w", slug, common.ErrForbidden)
	}
	if registered {
		return nil
	}
	return s.contestRepo.Register(ctx, contest.ID, actor.UserID)
}

func (s *ContestService) Scoreboard(ctx context.Context, actor *access.Actor, slug string) ([]model.ScoreboardEntry, error) {
	contest, registered, err := s.find(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	if !access.CanViewScoreboard(actor, contest, registered, s.now()) {
		return nil, fmt.Errorf("scoreboard is published after the contest ends: %w", common.ErrForbidden)
	}
	rows, err := s.contestRepo.ScoreboardRows(ctx, contest.ID)
	if err != nil {
		return nil, err
	}
	return buildScoreboard(rows), nil
}

// buildScoreboard folds per-problem rows into one entry per user, ordered
// by solved count, then by the earliest time of the last solve.
func buildScoreboard(rows []model.ScoreboardRow) []model.ScoreboardEntry {
	entries := []model.ScoreboardEntry{}
	index := make(map[int64]int)
	for _, row := range rows {
		i, ok := index[row.UserID]
		if !ok {
			i = len(entries)
			index[row.UserID] = i
			entries = append(entries, model.ScoreboardEntry{UserID: row.UserID, Username: row.Username, Problems: []model.ScoreboardCell{}})
		}
		e := &entries[i]
		cell := model.ScoreboardCell{ContestProblem: row.ContestProblem, Attempts: row.Attempts}
		if row.FirstSolvedAt != nil {
			cell.Solved = true
			cell.SolvedAt = row.FirstSolvedAt
			e.ProblemsSolved++
			if e.LastSolvedAt == nil || row.FirstSolvedAt.After(*e.LastSolvedAt) {
				e.LastSolvedAt = row.FirstSolvedAt
			}
		}
		e.Problems = append(e.Problems, cell)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if ea.ProblemsSolved != eb.ProblemsSolved {
			return ea.ProblemsSolved > eb.ProblemsSolved
		}
		if (ea.LastSolvedAt == nil) != (eb.LastSolvedAt == nil) {
			return ea.LastSolvedAt != nil
		}
		if ea.LastSolvedAt != nil && !ea.LastSolvedAt.Equal(*eb.LastSolvedAt) {
			return ea.LastSolvedAt.Before(*eb.LastSolvedAt)
		}
		return ea.Username < eb.Username
	})

	for i := range entries {
		entries[i].Rank = i + 1
		if i > 0 && sameStanding(entries[i-1], entries[i]) {
			entries[i].Rank = entries[i-1].Rank
		}
	}
	return entries
}

func sameStanding(a, b model.ScoreboardEntry) bool {
	if a.ProblemsSolved != b.ProblemsSolved {
		return false
	}
	if a.LastSolvedAt == nil || b.LastSolvedAt == nil {
		return a.LastSolvedAt == nil && b.LastSolvedAt == nil
	}
	return a.LastSolvedAt.Equal(*b.LastSolvedAt)
}
