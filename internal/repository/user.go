package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bank-cards-api/internal/model"
)

const userColumns = `id, username, email, password, role, blocked, created_at, updated_at`

type UserRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewUserRepository(db *sql.DB, logger *logrus.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.Password,
		user.Role,
		user.Blocked,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapError(err, "failed to create user")
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapError(err, "user "+email)
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM users WHERE lower(email) = lower($1) OR username = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("user %s", id))
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, req model.PageRequest) (model.Page[model.User], error) {
	req = req.Normalize()
	result := model.Page[model.User]{Page: req.Page, Size: req.Size, Items: []model.User{}}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY username LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, req.Size, req.Offset())
	if err != nil {
		return result, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return result, fmt.Errorf("failed to scan user: %w", err)
		}
		result.Items = append(result.Items, *user)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

func (r *UserRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET blocked = $2, updated_at = $3 WHERE id = $1`, id, blocked, at)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", id).Error("Ошибка при изменении блокировки пользователя")
		return mapError(err, "failed to update user")
	}
	return expectOne(res, fmt.Sprintf("user %s", id))
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	err := s.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.Blocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
