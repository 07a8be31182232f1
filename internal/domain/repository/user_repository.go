package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"judge_zone/internal/common"
	"judge_zone/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, display_name, email, password_hash, permissions, registration_time`

func scanUser(row interface{ Scan(...any) error }, user *model.User) error {
	return row.Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email, &user.PasswordHash,
		textArray(&user.Permissions), &user.RegistrationTime,
	)
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	if user.Permissions == nil {
		user.Permissions = []string{}
	}
	query := `INSERT INTO users (username, display_name, email, password_hash, permissions)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, registration_time`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.DisplayName, user.Email, user.PasswordHash, user.Permissions,
	).Scan(&user.ID, &user.RegistrationTime)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET display_name = $1, email = $2, permissions = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, user.DisplayName, user.Email, user.Permissions, user.ID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Update: %w", err)
	}
	return checkAffected(res, common.ErrNotFound)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user := &model.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, username), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByUsername: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user := &model.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.List: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.List rows: %w", err)
	}
	return users, nil
}
