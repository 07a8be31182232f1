package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"judge_zone/internal/domain/model"
	"judge_zone/internal/domain/repository"
	"judge_zone/internal/platform/metrics"
	"judge_zone/internal/platform/notify"
)

// JudgeService accepts results posted by the judge worker.
type JudgeService struct {
	submissionRepo repository.SubmissionRepository
	publisher      notify.Publisher
	metrics        *metrics.Metrics
	log            *zap.Logger
}

func NewJudgeService(subRepo repository.SubmissionRepository, publisher notify.Publisher, m *metrics.Metrics, log *zap.Logger) *JudgeService {
	return &JudgeService{submissionRepo: subRepo, publisher: publisher, metrics: m, log: log}
}

// ReportResult overwrites the stored result with report in a single update,
// then publishes the progress event. Replaying the same report yields the
// same row. The event is best effort: a publish failure is logged and never
// fails the call.
func (s *JudgeService) ReportResult(ctx context.Context, submissionID int64, report model.JudgeReport) error {
	if err := report.Validate(); err != nil {
		return err
	}
	if report.TestCases == nil {
		report.TestCases = []model.TestCaseResult{}
	}
	verdictJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("JudgeService.ReportResult encode: %w", err)
	}
	if err := s.submissionRepo.ApplyJudgeReport(ctx, submissionID, report, verdictJSON); err != nil {
		return err
	}
	s.metrics.JudgeReports.WithLabelValues(report.Verdict).Inc()

	progress, total := report.Progress()
	s.log.Info("judge report applied",
		zap.Int64("submission_id", submissionID),
		zap.String("verdict", report.Verdict),
		zap.Int("progress", progress),
		zap.Int("total", total),
	)

	event := model.ProgressEvent{Progress: progress, Total: total, Time: report.Time, Memory: report.Memory}
	if err := s.publisher.Publish(ctx, notify.SubmissionChannel(submissionID), event); err != nil {
		s.metrics.NotifyFailures.Inc()
		s.log.Warn("progress event not published", zap.Int64("submission_id", submissionID), zap.Error(err))
	}
	return nil
}
