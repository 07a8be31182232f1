package model

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// VerdictWaiting marks a submission or testcase that has no result yet.
const VerdictWaiting = "WJ"

const VerdictAccepted = "AC"

type Submission struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	ProblemID        int64           `json:"problem_id"`
	ContestID        *int64          `json:"contest_id"`
	ContestProblemID *int64          `json:"contest_problem_id"`
	Language         string          `json:"language"`
	SourceCode       string          `json:"source_code"`
	Verdict          string          `json:"verdict"`
	Time             *int64          `json:"time"`
	Memory           *int64          `json:"memory"`
	VerdictJSON      json.RawMessage `json:"verdict_json"`
	CompileMessage   *string         `json:"compile_message"`
	Date             time.Time       `json:"date"`
}

func (s *Submission) InContest() bool {
	return s.ContestID != nil
}

func (s *Submission) IsWaiting() bool {
	return s.Verdict == VerdictWaiting
}

// SlimSubmission is the view for anyone who is neither the owner nor an
// admin: summary fields only.
type SlimSubmission struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	ProblemID        int64     `json:"problem_id"`
	ContestID        *int64    `json:"contest_id"`
	ContestProblemID *int64    `json:"contest_problem_id"`
	Language         string    `json:"language"`
	Verdict          string    `json:"verdict"`
	Time             *int64    `json:"time"`
	Memory           *int64    `json:"memory"`
	Date             time.Time `json:"date"`
}

func (s *Submission) Slim() SlimSubmission {
	return SlimSubmission{
		ID:               s.ID,
		UserID:           s.UserID,
		ProblemID:        s.ProblemID,
		ContestID:        s.ContestID,
		ContestProblemID: s.ContestProblemID,
		Language:         s.Language,
		Verdict:          s.Verdict,
		Time:             s.Time,
		Memory:           s.Memory,
		Date:             s.Date,
	}
}

// AdminSubmission is a listing row joined with the names behind the ids.
type AdminSubmission struct {
	SlimSubmission
	Username           string  `json:"username"`
	ProblemSlug        string  `json:"problem_slug"`
	ContestSlug        *string `json:"contest_slug"`
	ContestProblemSlug *string `json:"contest_problem_slug"`
}

// SubmissionFilter narrows a listing; zero values mean "any".
type SubmissionFilter struct {
	UserID    *int64
	ProblemID *int64
	ContestID *int64
	Verdict   *string
	// VisibleTo limits rows to those the viewer may see, before paging.
	// Nil means no visibility rule (admins).
	VisibleTo *SubmissionViewer
	Limit     int
	Offset    int
}

// SubmissionViewer is a non-admin reader of a listing. UserID is nil for
// anonymous requests.
type SubmissionViewer struct {
	UserID *int64
	Now    time.Time
}

type SubmitRequest struct {
	Language   string `json:"language"`
	SourceCode string `json:"source_code"`
}

func (r SubmitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Language, validation.Required, validation.Length(1, 32)),
		validation.Field(&r.SourceCode, validation.Required, validation.Length(1, 256*1024)),
	)
}

type ContestSubmitRequest struct {
	ContestProblem string `json:"contest_problem"`
	SubmitRequest
}

func (r ContestSubmitRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.ContestProblem, validation.Required, validation.Match(SlugRegexp)),
	); err != nil {
		return err
	}
	return r.SubmitRequest.Validate()
}

type SubmitResponse struct {
	ID int64 `json:"id"`
}

// TestCaseResult is one entry of a judge report.
type TestCaseResult struct {
	Verdict       string  `json:"verdict"`
	Time          *int64  `json:"time"`
	Memory        *int64  `json:"memory"`
	CheckerOutput *string `json:"checker_output,omitempty"`
	SandboxOutput *string `json:"sandbox_output,omitempty"`
}

// JudgeReport is the full result of one judging pass, posted by the worker.
type JudgeReport struct {
	Verdict        string           `json:"verdict"`
	Time           *int64           `json:"time"`
	Memory         *int64           `json:"memory"`
	CompileMessage *string          `json:"compile_message,omitempty"`
	TestCases      []TestCaseResult `json:"testcases"`
}

func (r JudgeReport) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Verdict, validation.Required, validation.Length(1, 16)),
		validation.Field(&r.Time, validation.Min(int64(0))),
		validation.Field(&r.Memory, validation.Min(int64(0))),
	)
}

// Progress counts testcases that already have a verdict.
func (r JudgeReport) Progress() (progress, total int) {
	for _, tc := range r.TestCases {
		if tc.Verdict != VerdictWaiting {
			progress++
		}
	}
	return progress, len(r.TestCases)
}

// ProgressEvent is published on the submission's channel after each report.
type ProgressEvent struct {
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Time     *int64 `json:"time"`
	Memory   *int64 `json:"memory"`
}
