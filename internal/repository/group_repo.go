package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

// GetByID returns (nil, nil) when the group does not exist.
func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	query := `
		SELECT id, name, description, daily_goal_minutes, monthly_goal_minutes,
		       daily_max_minutes, monthly_min_minutes, created_at
		FROM groups
		WHERE id = $1
	`
	var g models.Group
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Description, &g.DailyGoalMinutes, &g.MonthlyGoalMinutes,
		&g.DailyMaxMinutes, &g.MonthlyMinMinutes, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepo) List(ctx context.Context) ([]models.Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, daily_goal_minutes, monthly_goal_minutes,
		       daily_max_minutes, monthly_min_minutes, created_at
		FROM groups
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(
			&g.ID, &g.Name, &g.Description, &g.DailyGoalMinutes, &g.MonthlyGoalMinutes,
			&g.DailyMaxMinutes, &g.MonthlyMinMinutes, &g.CreatedAt,
		); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
