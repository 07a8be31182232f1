package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error)
	// ApplyJudgeReport overwrites every result column in one statement.
	ApplyJudgeReport(ctx context.Context, id int64, report model.JudgeReport, verdictJSON []byte) error
	// ResetForRejudge puts the row back into the waiting state and returns it.
	ResetForRejudge(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)
	ListAdminSubmissions(ctx context.Context, limit int) ([]model.AdminSubmission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, problem_id, contest_id, contest_problem_id, language, source_code,
	verdict, time, memory, verdict_json, compile_message, date`

func scanSubmission(row interface{ Scan(...any) error }, s *model.Submission) error {
	var verdictJSON []byte
	err := row.Scan(
		&s.ID, &s.UserID, &s.ProblemID, &s.ContestID, &s.ContestProblemID, &s.Language, &s.SourceCode,
		&s.Verdict, &s.Time, &s.Memory, &verdictJSON, &s.CompileMessage, &s.Date,
	)
	if err != nil {
		return err
	}
	if len(verdictJSON) > 0 {
		s.VerdictJSON = verdictJSON
	}
	return nil
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, s *model.Submission) error {
	query := `INSERT INTO submissions (user_id, problem_id, contest_id, contest_problem_id, language, source_code, verdict)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, date`
	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.ProblemID, s.ContestID, s.ContestProblemID, s.Language, s.SourceCode, s.Verdict,
	).Scan(&s.ID, &s.Date)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("submission target does not exist: %w", common.ErrBadRequest)
		}
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id int64) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	s := &model.Submission{}
	if err := scanSubmission(r.db.QueryRowContext(ctx, query, id), s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) ApplyJudgeReport(ctx context.Context, id int64, report model.JudgeReport, verdictJSON []byte) error {
	query := `UPDATE submissions
	          SET verdict = $1, time = $2, memory = $3, compile_message = $4, verdict_json = $5
	          WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query,
		report.Verdict, report.Time, report.Memory, report.CompileMessage, nullableJSON(verdictJSON), id,
	)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.ApplyJudgeReport: %w", err)
	}
	return checkAffected(res, common.ErrNotFound)
}

func (r *pgSubmissionRepository) ResetForRejudge(ctx context.Context, id int64) (*model.Submission, error) {
	query := `UPDATE submissions
	          SET verdict = $1, time = NULL, memory = NULL, verdict_json = NULL, compile_message = NULL
	          WHERE id = $2
	          RETURNING ` + submissionColumns
	s := &model.Submission{}
	if err := scanSubmission(r.db.QueryRowContext(ctx, query, model.VerdictWaiting, id), s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.ResetForRejudge: %w", err)
	}
	return s, nil
}

// visibleTo mirrors access.CanViewSubmission for a non-admin viewer: own
// rows, standalone rows on public problems, and contest rows once the
// contest has ended, if it is public or the viewer registered.
func visibleTo(v model.SubmissionViewer) sq.Sqlizer {
	contestOpen := sq.Or{sq.Expr("c.is_public")}
	if v.UserID != nil {
		contestOpen = append(contestOpen, sq.Expr(
			"EXISTS (SELECT 1 FROM contest_registrations cr WHERE cr.contest_id = c.id AND cr.user_id = ?)",
			*v.UserID,
		))
	}
	contestSQL, contestArgs, _ := contestOpen.ToSql()

	visible := sq.Or{
		sq.Expr("(contest_id IS NULL AND EXISTS (SELECT 1 FROM problems p WHERE p.id = submissions.problem_id AND p.is_public))"),
		sq.Expr("(contest_id IS NOT NULL AND EXISTS (SELECT 1 FROM contests c WHERE c.id = submissions.contest_id AND c.end_time < ? AND "+contestSQL+"))",
			append([]any{v.Now}, contestArgs...)...),
	}
	if v.UserID != nil {
		visible = append(sq.Or{sq.Eq{"user_id": *v.UserID}}, visible...)
	}
	return visible
}

func submissionListQuery(filter model.SubmissionFilter) (string, []any, error) {
	sb := psql.Select(submissionColumns).From("submissions").OrderBy("date DESC", "id DESC")
	where := sq.And{}
	if filter.UserID != nil {
		where = append(where, sq.Eq{"user_id": *filter.UserID})
	}
	if filter.ProblemID != nil {
		where = append(where, sq.Eq{"problem_id": *filter.ProblemID})
	}
	if filter.ContestID != nil {
		where = append(where, sq.Eq{"contest_id": *filter.ContestID})
	}
	if filter.Verdict != nil {
		where = append(where, sq.Eq{"verdict": *filter.Verdict})
	}
	if filter.VisibleTo != nil {
		where = append(where, visibleTo(*filter.VisibleTo))
	}
	if len(where) > 0 {
		sb = sb.Where(where)
	}
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		sb = sb.Offset(uint64(filter.Offset))
	}
	return sb.ToSql()
}

func (r *pgSubmissionRepository) ListSubmissions(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	query, args, err := submissionListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissions build: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissions query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissions scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissions rows: %w", err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) ListAdminSubmissions(ctx context.Context, limit int) ([]model.AdminSubmission, error) {
	query := `
        SELECT s.id, s.user_id, s.problem_id, s.contest_id, s.contest_problem_id, s.language,
               s.verdict, s.time, s.memory, s.date,
               u.username, p.slug, c.slug, cp.slug
        FROM submissions s
        JOIN users u ON u.id = s.user_id
        JOIN problems p ON p.id = s.problem_id
        LEFT JOIN contests c ON c.id = s.contest_id
        LEFT JOIN contest_problems cp ON cp.id = s.contest_problem_id
        ORDER BY s.date DESC, s.id DESC
        LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListAdminSubmissions: %w", err)
	}
	defer rows.Close()

	subs := []model.AdminSubmission{}
	for rows.Next() {
		var a model.AdminSubmission
		err := rows.Scan(
			&a.ID, &a.UserID, &a.ProblemID, &a.ContestID, &a.ContestProblemID, &a.Language,
			&a.Verdict, &a.Time, &a.Memory, &a.Date,
			&a.Username, &a.ProblemSlug, &a.ContestSlug, &a.ContestProblemSlug,
		)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListAdminSubmissions scan: %w", err)
		}
		subs = append(subs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListAdminSubmissions rows: %w", err)
	}
	return subs, nil
}
