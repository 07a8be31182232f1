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

// ContestListFilter selects what a listing may contain. All=true ignores
// visibility; otherwise public contests plus those RegisteredUserID joined.
type ContestListFilter struct {
	All              bool
	RegisteredUserID *int64
}

type ContestRepository interface {
	CreateContest(ctx context.Context, tx *sql.Tx, contest *model.Contest) error
	UpdateContest(ctx context.Context, tx *sql.Tx, contest *model.Contest) error
	DeleteContest(ctx context.Context, id int64) error
	FindContestByID(ctx context.Context, id int64) (*model.Contest, error)
	FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error)
	ListContests(ctx context.Context, filter ContestListFilter) ([]model.Contest, error)

	ReplaceContestProblems(ctx context.Context, tx *sql.Tx, contestID int64, problems []model.ContestProblem) error
	ListContestProblems(ctx context.Context, contestID int64) ([]model.ContestProblem, error)
	FindContestProblem(ctx context.Context, contestID int64, slug string) (*model.ContestProblem, error)

	Register(ctx context.Context, contestID, userID int64) error
	IsRegistered(ctx context.Context, contestID, userID int64) (bool, error)
	ScoreboardRows(ctx context.Context, contestID int64) ([]model.ScoreboardRow, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestColumns = `id, slug, title, is_public, start_time, end_time`

func scanContest(row interface{ Scan(...any) error }, c *model.Contest) error {
	return row.Scan(&c.ID, &c.Slug, &c.Title, &c.IsPublic, &c.StartTime, &c.EndTime)
}

func (r *pgContestRepository) CreateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `INSERT INTO contests (slug, title, is_public, start_time, end_time)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`
	err := conn(r.db, tx).QueryRowContext(ctx, query, c.Slug, c.Title, c.IsPublic, c.StartTime, c.EndTime).Scan(&c.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) UpdateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `UPDATE contests SET slug = $1, title = $2, is_public = $3, start_time = $4, end_time = $5
	          WHERE id = $6`
	res, err := conn(r.db, tx).ExecContext(ctx, query, c.Slug, c.Title, c.IsPublic, c.StartTime, c.EndTime, c.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.UpdateContest: %w", err)
	}
	return checkAffected(res, common.ErrNotFound)
}

// DeleteContest removes the contest together with its submissions. The
// submissions go first since they hold the contest problem rows in place.
func (r *pgContestRepository) DeleteContest(ctx context.Context, id int64) error {
	return NewTxRunner(r.db).WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE contest_id = $1`, id); err != nil {
			return fmt.Errorf("pgContestRepository.DeleteContest submissions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM contests WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("pgContestRepository.DeleteContest: %w", err)
		}
		return checkAffected(res, common.ErrNotFound)
	})
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id int64) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`
	c := &model.Contest{}
	if err := scanContest(r.db.QueryRowContext(ctx, query, id), c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE slug = $1`
	c := &model.Contest{}
	if err := scanContest(r.db.QueryRowContext(ctx, query, slug), c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestBySlug: %w", err)
	}
	return c, nil
}

func contestListQuery(filter ContestListFilter) (string, []any, error) {
	sb := psql.Select(contestColumns).From("contests").OrderBy("start_time DESC", "id DESC")
	if !filter.All {
		visible := sq.Or{sq.Expr("is_public")}
		if filter.RegisteredUserID != nil {
			visible = append(visible, sq.Expr(
				"EXISTS (SELECT 1 FROM contest_registrations WHERE contest_id = contests.id AND user_id = ?)",
				*filter.RegisteredUserID,
			))
		}
		sb = sb.Where(visible)
	}
	return sb.ToSql()
}

func (r *pgContestRepository) ListContests(ctx context.Context, filter ContestListFilter) ([]model.Contest, error) {
	query, args, err := contestListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests build: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		var c model.Contest
		if err := scanContest(rows, &c); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContests rows: %w", err)
	}
	return contests, nil
}

// ContestProblemPlan is the edit that turns the stored problem list into
// the wanted one. Update and Insert index into the wanted slice; its
// position is the index.
type ContestProblemPlan struct {
	Update []int
	Insert []int
	Remove []int64
}

// PlanContestProblems matches wanted against current by slug. Matched rows
// keep their id, so submissions that point at them survive the edit. The ids
// are written back into wanted.
func PlanContestProblems(current, wanted []model.ContestProblem) ContestProblemPlan {
	bySlug := make(map[string]int64, len(current))
	for _, cp := range current {
		bySlug[cp.Slug] = cp.ID
	}

	var plan ContestProblemPlan
	kept := make(map[int64]bool, len(current))
	for i := range wanted {
		id, ok := bySlug[wanted[i].Slug]
		if ok && !kept[id] {
			kept[id] = true
			wanted[i].ID = id
			plan.Update = append(plan.Update, i)
			continue
		}
		plan.Insert = append(plan.Insert, i)
	}
	for _, cp := range current {
		if !kept[cp.ID] {
			plan.Remove = append(plan.Remove, cp.ID)
		}
	}
	return plan
}

// ReplaceContestProblems reconciles the stored list with problems by slug.
// Must run inside the same tx as the contest write. Removing a contest
// problem that already has submissions is a conflict.
func (r *pgContestRepository) ReplaceContestProblems(ctx context.Context, tx *sql.Tx, contestID int64, problems []model.ContestProblem) error {
	db := conn(r.db, tx)
	current, err := lockContestProblems(ctx, db, contestID)
	if err != nil {
		return err
	}
	plan := PlanContestProblems(current, problems)

	for _, id := range plan.Remove {
		if _, err := db.ExecContext(ctx, `DELETE FROM contest_problems WHERE id = $1`, id); err != nil {
			if common.IsForeignKeyViolation(err) {
				return fmt.Errorf("contest problem %d already has submissions: %w", id, common.ErrConflict)
			}
			return fmt.Errorf("pgContestRepository.ReplaceContestProblems delete: %w", err)
		}
	}
	for _, i := range plan.Update {
		cp := &problems[i]
		cp.ContestID = contestID
		_, err := db.ExecContext(ctx,
			`UPDATE contest_problems SET problem_id = $1, position = $2 WHERE id = $3`,
			cp.ProblemID, i, cp.ID,
		)
		if err != nil {
			if common.IsForeignKeyViolation(err) {
				return fmt.Errorf("problem %d does not exist: %w", cp.ProblemID, common.ErrBadRequest)
			}
			return fmt.Errorf("pgContestRepository.ReplaceContestProblems update: %w", err)
		}
	}
	for _, i := range plan.Insert {
		cp := &problems[i]
		cp.ContestID = contestID
		err := db.QueryRowContext(ctx,
			`INSERT INTO contest_problems (slug, contest_id, problem_id, position) VALUES ($1, $2, $3, $4) RETURNING id`,
			cp.Slug, contestID, cp.ProblemID, i,
		).Scan(&cp.ID)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return fmt.Errorf("contest problem slug %q repeated: %w", cp.Slug, common.ErrConflict)
			}
			if common.IsForeignKeyViolation(err) {
				return fmt.Errorf("problem %d does not exist: %w", cp.ProblemID, common.ErrBadRequest)
			}
			return fmt.Errorf("pgContestRepository.ReplaceContestProblems insert: %w", err)
		}
	}
	return nil
}

func lockContestProblems(ctx context.Context, db dbtx, contestID int64) ([]model.ContestProblem, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, slug FROM contest_problems WHERE contest_id = $1 FOR UPDATE`, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.lockContestProblems: %w", err)
	}
	defer rows.Close()

	var current []model.ContestProblem
	for rows.Next() {
		var cp model.ContestProblem
		if err := rows.Scan(&cp.ID, &cp.Slug); err != nil {
			return nil, fmt.Errorf("pgContestRepository.lockContestProblems scan: %w", err)
		}
		current = append(current, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.lockContestProblems rows: %w", err)
	}
	return current, nil
}

const contestProblemSelect = `SELECT cp.id, cp.slug, cp.contest_id, cp.problem_id, p.slug, p.title
	FROM contest_problems cp
	JOIN problems p ON p.id = cp.problem_id`

func scanContestProblem(row interface{ Scan(...any) error }, cp *model.ContestProblem) error {
	return row.Scan(&cp.ID, &cp.Slug, &cp.ContestID, &cp.ProblemID, &cp.ProblemSlug, &cp.Title)
}

func (r *pgContestRepository) ListContestProblems(ctx context.Context, contestID int64) ([]model.ContestProblem, error) {
	rows, err := r.db.QueryContext(ctx, contestProblemSelect+` WHERE cp.contest_id = $1 ORDER BY cp.position, cp.id`, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContestProblems: %w", err)
	}
	defer rows.Close()

	problems := []model.ContestProblem{}
	for rows.Next() {
		var cp model.ContestProblem
		if err := scanContestProblem(rows, &cp); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContestProblems scan: %w", err)
		}
		problems = append(problems, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContestProblems rows: %w", err)
	}
	return problems, nil
}

func (r *pgContestRepository) FindContestProblem(ctx context.Context, contestID int64, slug string) (*model.ContestProblem, error) {
	cp := &model.ContestProblem{}
	row := r.db.QueryRowContext(ctx, contestProblemSelect+` WHERE cp.contest_id = $1 AND cp.slug = $2`, contestID, slug)
	if err := scanContestProblem(row, cp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestProblem: %w", err)
	}
	return cp, nil
}

func (r *pgContestRepository) Register(ctx context.Context, contestID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contest_registrations (contest_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		contestID, userID,
	)
	if err != nil {
		return fmt.Errorf("pgContestRepository.Register: %w", err)
	}
	return nil
}

func (r *pgContestRepository) IsRegistered(ctx context.Context, contestID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contest_registrations WHERE contest_id = $1 AND user_id = $2)`,
		contestID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.IsRegistered: %w", err)
	}
	return exists, nil
}

// ScoreboardRows returns one row per (registered user, contest problem),
// with attempt counts and the first accepted time.
func (r *pgContestRepository) ScoreboardRows(ctx context.Context, contestID int64) ([]model.ScoreboardRow, error) {
	query := `
        SELECT u.id, u.username, cp.slug,
               COUNT(s.id) AS attempts,
               MIN(s.date) FILTER (WHERE s.verdict = $2) AS first_ac
        FROM contest_registrations cr
        JOIN users u ON u.id = cr.user_id
        JOIN contest_problems cp ON cp.contest_id = cr.contest_id
        LEFT JOIN submissions s ON s.contest_problem_id = cp.id AND s.user_id = u.id
        WHERE cr.contest_id = $1
        GROUP BY u.id, u.username, cp.id, cp.slug, cp.position
        ORDER BY u.id, cp.position, cp.id`
	rows, err := r.db.QueryContext(ctx, query, contestID, model.VerdictAccepted)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ScoreboardRows: %w", err)
	}
	defer rows.Close()

	var out []model.ScoreboardRow
	for rows.Next() {
		var row model.ScoreboardRow
		if err := rows.Scan(&row.UserID, &row.Username, &row.ContestProblem, &row.Attempts, &row.FirstSolvedAt); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ScoreboardRows scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ScoreboardRows rows: %w", err)
	}
	return out, nil
}
