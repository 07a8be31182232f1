package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"judge_zone/internal/app/access"
	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
	"judge_zone/internal/platform/metrics"
	"judge_zone/internal/platform/queue"
)

const (
	DefaultSubmissionPage = 50
	MaxSubmissionPage     = 200
)

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	contestRepo    repository.ContestRepository
	judgeQueue     queue.JudgeQueue
	metrics        *metrics.Metrics
	log            *zap.Logger
	adminLimit     int
	now            func() time.Time
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	judgeQueue queue.JudgeQueue,
	m *metrics.Metrics,
	log *zap.Logger,
	adminLimit int,
) *SubmissionService {
	if adminLimit <= 0 {
		adminLimit = DefaultSubmissionPage
	}
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		contestRepo:    contestRepo,
		judgeQueue:     judgeQueue,
		metrics:        m,
		log:            log,
		adminLimit:     adminLimit,
		now:            time.Now,
	}
}

// SubmitToProblem stores a standalone attempt and queues it for judging.
func (s *SubmissionService) SubmitToProblem(ctx context.Context, actor *access.Actor, problemSlug string, req model.SubmitRequest) (*model.SubmitResponse, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err
	}
	if !access.CanViewProblem(actor, problem) {
		return nil, common.ErrNotFound
	}

	sub := &model.Submission{
		UserID:     actor.UserID,
		ProblemID:  problem.ID,
		Language:   req.Language,
		SourceCode: req.SourceCode,
	}
	return s.create(ctx, sub)
}

// SubmitToContest requires the contest to be running and the actor to be
// registered. Admins get no exemption.
func (s *SubmissionService) SubmitToContest(ctx context.Context, actor *access.Actor, contestSlug string, req model.ContestSubmitRequest) (*model.SubmitResponse, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	contest, err := s.contestRepo.FindContestBySlug(ctx, contestSlug)
	if err != nil {
		return nil, err
	}
	registered, err := s.contestRepo.IsRegistered(ctx, contest.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewContest(actor, contest, registered) {
		return nil, common.ErrNotFound
	}
	if !access.CanSubmitInContest(actor, contest, registered, s.now()) {
		return nil, fmt.Errorf("contest %s is not open for this user: %w", contestSlug, common.ErrForbidden)
	}
	cp, err := s.contestRepo.FindContestProblem(ctx, contest.ID, req.ContestProblem)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		UserID:           actor.UserID,
		ProblemID:        cp.ProblemID,
		ContestID:        &contest.ID,
		ContestProblemID: &cp.ID,
		Language:         req.Language,
		SourceCode:       req.SourceCode,
	}
	return s.create(ctx, sub)
}

// create inserts the row in the waiting state, then enqueues it. The two
// steps are not atomic: on enqueue failure the row stays and an admin has to
// rejudge it.
func (s *SubmissionService) create(ctx context.Context, sub *model.Submission) (*model.SubmitResponse, error) {
	sub.Verdict = model.VerdictWaiting
	if err := s.submissionRepo.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	s.metrics.SubmissionsCreated.Inc()

	if err := s.enqueue(ctx, sub.ID); err != nil {
		return nil, err
	}
	s.log.Info("submission queued",
		zap.Int64("submission_id", sub.ID),
		zap.Int64("user_id", sub.UserID),
		zap.Int64("problem_id", sub.ProblemID),
		zap.Int64p("contest_id", sub.ContestID),
	)
	return &model.SubmitResponse{ID: sub.ID}, nil
}

func (s *SubmissionService) enqueue(ctx context.Context, id int64) error {
	if err := s.judgeQueue.Enqueue(ctx, id); err != nil {
		s.metrics.EnqueueFailures.Inc()
		s.log.Error("judge enqueue failed, submission left waiting", zap.Int64("submission_id", id), zap.Error(err))
		return fmt.Errorf("submission %d stored but not queued: %w", id, common.ErrServiceUnavailable)
	}
	return nil
}

// viewCache memoizes the lookups behind CanView for one request.
type viewCache struct {
	problems   map[int64]*model.Problem
	contests   map[int64]*model.Contest
	registered map[int64]bool
}

func newViewCache() *viewCache {
	return &viewCache{
		problems:   make(map[int64]*model.Problem),
		contests:   make(map[int64]*model.Contest),
		registered: make(map[int64]bool),
	}
}

func (s *SubmissionService) target(ctx context.Context, actor *access.Actor, sub *model.Submission, cache *viewCache) (access.SubmissionTarget, error) {
	var t access.SubmissionTarget
	if !sub.InContest() {
		p, ok := cache.problems[sub.ProblemID]
		if !ok {
			var err error
			if p, err = s.problemRepo.FindProblemByID(ctx, sub.ProblemID); err != nil && !errors.Is(err, common.ErrNotFound) {
				return t, err
			}
			cache.problems[sub.ProblemID] = p
		}
		t.Problem = p
		return t, nil
	}

	contestID := *sub.ContestID
	c, ok := cache.contests[contestID]
	if !ok {
		var err error
		if c, err = s.contestRepo.FindContestByID(ctx, contestID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return t, err
		}
		cache.contests[contestID] = c
	}
	t.Contest = c
	if actor != nil && c != nil {
		reg, ok := cache.registered[contestID]
		if !ok {
			var err error
			if reg, err = s.contestRepo.IsRegistered(ctx, contestID, actor.UserID); err != nil {
				return t, err
			}
			cache.registered[contestID] = reg
		}
		t.Registered = reg
	}
	return t, nil
}

func (s *SubmissionService) canView(ctx context.Context, actor *access.Actor, sub *model.Submission, cache *viewCache) (bool, error) {
	if access.CanSeeFullSubmission(actor, sub) {
		return true, nil
	}
	t, err := s.target(ctx, actor, sub, cache)
	if err != nil {
		return false, err
	}
	return access.CanViewSubmission(actor, sub, t, s.now()), nil
}

// Authorize loads a submission and checks the actor may see it. Denial is
// reported as not found.
func (s *SubmissionService) Authorize(ctx context.Context, actor *access.Actor, id int64) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, actor, sub, newViewCache())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrNotFound
	}
	return sub, nil
}

// Fetch returns the full record to the owner and admins and the slim view
// to everyone else allowed to see it.
func (s *SubmissionService) Fetch(ctx context.Context, actor *access.Actor, id int64) (any, error) {
	sub, err := s.Authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if access.CanSeeFullSubmission(actor, sub) {
		return sub, nil
	}
	return sub.Slim(), nil
}

// List returns the newest submissions matching filter that the actor may
// see, in slim view.
func (s *SubmissionService) List(ctx context.Context, actor *access.Actor, filter model.SubmissionFilter) ([]model.SlimSubmission, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultSubmissionPage
	}
	if filter.Limit > MaxSubmissionPage {
		filter.Limit = MaxSubmissionPage
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if !actor.IsAdmin() {
		viewer := &model.SubmissionViewer{Now: s.now()}
		if actor != nil {
			viewer.UserID = &actor.UserID
		}
		filter.VisibleTo = viewer
	}

	subs, err := s.submissionRepo.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, err
	}
	cache := newViewCache()
	out := make([]model.SlimSubmission, 0, len(subs))
	for i := range subs {
		ok, err := s.canView(ctx, actor, &subs[i], cache)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, subs[i].Slim())
		}
	}
	return out, nil
}

func (s *SubmissionService) AdminList(ctx context.Context, limit int) ([]model.AdminSubmission, error) {
	if limit <= 0 {
		limit = s.adminLimit
	}
	return s.submissionRepo.ListAdminSubmissions(ctx, limit)
}

// Rejudge clears the previous result and queues the submission again.
func (s *SubmissionService) Rejudge(ctx context.Context, id int64) (*model.Submission, error) {
	sub, err := s.submissionRepo.ResetForRejudge(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.Rejudges.Inc()
	if err := s.enqueue(ctx, sub.ID); err != nil {
		return nil, err
	}
	s.log.Info("submission rejudge queued", zap.Int64("submission_id", sub.ID))
	return sub, nil
}
