package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, level_id, group_id,
		       virtual_earnings, is_deleted, created_at, last_login_at
		FROM users
		WHERE username = $1 AND is_deleted = FALSE
	`
	var u models.User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.LevelID,
		&u.GroupID, &u.VirtualEarnings, &u.IsDeleted, &u.CreatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, level_id, group_id,
		       virtual_earnings, is_deleted, created_at, last_login_at
		FROM users
		WHERE id = $1 AND is_deleted = FALSE
	`
	var u models.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.LevelID,
		&u.GroupID, &u.VirtualEarnings, &u.IsDeleted, &u.CreatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// GroupIDForUser resolves the group a user belongs to. Returns (nil, nil)
// for users without a group.
func (r *UserRepo) GroupIDForUser(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var groupID *uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT group_id FROM users WHERE id = $1 AND is_deleted = FALSE`, id,
	).Scan(&groupID)
	if err != nil {
		return nil, err
	}
	return groupID, nil
}

func (r *UserRepo) AddVirtualEarnings(ctx context.Context, id uuid.UUID, amount int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET virtual_earnings = virtual_earnings + $1 WHERE id = $2`,
		amount, id,
	)
	return err
}
