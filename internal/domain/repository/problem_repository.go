package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	UpdateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	DeleteProblem(ctx context.Context, id int64) error
	FindProblemByID(ctx context.Context, id int64) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, publicOnly bool) ([]model.Problem, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

const problemColumns = `id, slug, title, statement, type, is_public,
	time_limit, memory_limit, compile_time_limit, compile_memory_limit, checker_time_limit, checker_memory_limit,
	checker, interactor, testcases, last_update`

func scanProblem(row interface{ Scan(...any) error }, p *model.Problem) error {
	var testcases []byte
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Statement, &p.Type, &p.IsPublic,
		&p.TimeLimit, &p.MemoryLimit, &p.CompileTimeLimit, &p.CompileMemoryLimit, &p.CheckerTimeLimit, &p.CheckerMemoryLimit,
		&p.Checker, &p.Interactor, &testcases, &p.LastUpdate,
	)
	if err != nil {
		return err
	}
	p.TestCases = []model.TestCase{}
	if len(testcases) > 0 {
		if err := json.Unmarshal(testcases, &p.TestCases); err != nil {
			return fmt.Errorf("decode testcases: %w", err)
		}
	}
	return nil
}

func problemArgs(p *model.Problem) ([]any, error) {
	tcs := p.TestCases
	if tcs == nil {
		tcs = []model.TestCase{}
	}
	testcases, err := json.Marshal(tcs)
	if err != nil {
		return nil, err
	}
	return []any{
		p.Slug, p.Title, p.Statement, p.Type, p.IsPublic,
		p.TimeLimit, p.MemoryLimit, p.CompileTimeLimit, p.CompileMemoryLimit, p.CheckerTimeLimit, p.CheckerMemoryLimit,
		p.Checker, p.Interactor, string(testcases),
	}, nil
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (slug, title, statement, type, is_public,
	              time_limit, memory_limit, compile_time_limit, compile_memory_limit, checker_time_limit, checker_memory_limit,
	              checker, interactor, testcases)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING id, last_update`
	args, err := problemArgs(p)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	if err := conn(r.db, tx).QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.LastUpdate); err != nil {
		if common.IsUniqueViolation(err) { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) UpdateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `UPDATE problems SET
	              slug = $1, title = $2, statement = $3, type = $4, is_public = $5,
	              time_limit = $6, memory_limit = $7, compile_time_limit = $8, compile_memory_limit = $9,
	              checker_time_limit = $10, checker_memory_limit = $11,
	              checker = $12, interactor = $13, testcases = $14, last_update = NOW()
	          WHERE id = $15
	          RETURNING last_update`
	args, err := problemArgs(p)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpdateProblem: %w", err)
	}
	args = append(args, p.ID)
	if err := conn(r.db, tx).QueryRowContext(ctx, query, args...).Scan(&p.LastUpdate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.UpdateProblem: %w", err)
	}
	return nil
}

// DeleteProblem also drops its submissions, contest ones included, before
// the contest problem rows are cascaded away.
func (r *pgProblemRepository) DeleteProblem(ctx context.Context, id int64) error {
	return NewTxRunner(r.db).WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE problem_id = $1`, id); err != nil {
			return fmt.Errorf("pgProblemRepository.DeleteProblem submissions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.DeleteProblem: %w", err)
		}
		return checkAffected(res, common.ErrNotFound)
	})
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id int64) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE id = $1`
	problem := &model.Problem{}
	if err := scanProblem(r.db.QueryRowContext(ctx, query, id), problem); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE slug = $1`
	problem := &model.Problem{}
	if err := scanProblem(r.db.QueryRowContext(ctx, query, slug), problem); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemBySlug: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, publicOnly bool) ([]model.Problem, error) {
	sb := psql.Select(problemColumns).From("problems").OrderBy("id")
	if publicOnly {
		sb = sb.Where("is_public")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblems build: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := scanProblem(rows, &p); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListProblems rows: %w", err)
	}
	return problems, nil
}
