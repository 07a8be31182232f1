package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"judge_zone/internal/domain/model"
	"judge_zone/internal/platform/queue"
)

// Dequeuer hands out submission ids, blocking up to timeout.
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (int64, error)
}

type SubmissionSource interface {
	GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error)
}

type ProblemSource interface {
	FindProblemByID(ctx context.Context, id int64) (*model.Problem, error)
}

// Reporter is the judge callback, normally service.JudgeService.
type Reporter interface {
	ReportResult(ctx context.Context, submissionID int64, report model.JudgeReport) error
}

// MockJudge stands in for the external judge during local development. It
// pops submission ids and reports the configured verdict for every
// testcase, one testcase at a time, so progress events flow like they do
// with a real worker.
type MockJudge struct {
	queue       Dequeuer
	submissions SubmissionSource
	problems    ProblemSource
	reporter    Reporter
	verdict     string
	log         *zap.Logger

	PollTimeout time.Duration
	RetryDelay  time.Duration
}

func NewMockJudge(q Dequeuer, subs SubmissionSource, problems ProblemSource, reporter Reporter, verdict string, log *zap.Logger) *MockJudge {
	if verdict == "" {
		verdict = model.VerdictAccepted
	}
	return &MockJudge{
		queue:       q,
		submissions: subs,
		problems:    problems,
		reporter:    reporter,
		verdict:     verdict,
		log:         log,
		PollTimeout: 5 * time.Second,
		RetryDelay:  time.Second,
	}
}

// Run consumes the queue until ctx is cancelled. It returns nil on shutdown.
func (w *MockJudge) Run(ctx context.Context) error {
	w.log.Info("mock judge started", zap.String("verdict", w.verdict))
	for {
		if ctx.Err() != nil {
			w.log.Info("mock judge stopping")
			return nil
		}

		id, err := w.queue.Dequeue(ctx, w.PollTimeout)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrEmpty):
				continue
			case ctx.Err() != nil:
				continue
			}
			w.log.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.RetryDelay): // Avoid busy-looping while redis is down
			}
			continue
		}

		if err := w.judge(ctx, id); err != nil {
			w.log.Error("mock judging failed", zap.Int64("submission_id", id), zap.Error(err))
		}
	}
}

func (w *MockJudge) judge(ctx context.Context, id int64) error {
	sub, err := w.submissions.GetSubmissionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	problem, err := w.problems.FindProblemByID(ctx, sub.ProblemID)
	if err != nil {
		return fmt.Errorf("load problem %d: %w", sub.ProblemID, err)
	}

	results := make([]model.TestCaseResult, len(problem.TestCases))
	for i := range results {
		results[i] = model.TestCaseResult{Verdict: model.VerdictWaiting}
	}
	var elapsed, memory int64
	for i := range results {
		t, m := int64(10*(i+1)), int64(1024)
		results[i] = model.TestCaseResult{Verdict: w.verdict, Time: &t, Memory: &m}
		elapsed, memory = max(elapsed, t), max(memory, m)

		if i == len(results)-1 {
			break
		}
		partial := model.JudgeReport{Verdict: model.VerdictWaiting, TestCases: append([]model.TestCaseResult(nil), results...)}
		if err := w.reporter.ReportResult(ctx, id, partial); err != nil {
			return fmt.Errorf("partial report: %w", err)
		}
	}

	final := model.JudgeReport{Verdict: w.verdict, Time: &elapsed, Memory: &memory, TestCases: results}
	if err := w.reporter.ReportResult(ctx, id, final); err != nil {
		return fmt.Errorf("final report: %w", err)
	}
	w.log.Info("mock judged", zap.Int64("submission_id", id), zap.String("verdict", w.verdict), zap.Int("testcases", len(results)))
	return nil
}
