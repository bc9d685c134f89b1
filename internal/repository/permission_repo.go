package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PermissionRepo is the boolean permission oracle: "does level X hold
// capability Y". The engine itself never consults it; route middleware does.
type PermissionRepo struct {
	pool *pgxpool.Pool
}

func NewPermissionRepo(pool *pgxpool.Pool) *PermissionRepo {
	return &PermissionRepo{pool: pool}
}

func (r *PermissionRepo) HasPermission(ctx context.Context, levelID int, authKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM level_permissions lp
			JOIN permissions p ON lp.permission_id = p.id
			WHERE lp.level_id = $1 AND p.auth_key = $2
			  AND lp.is_active = TRUE AND p.is_active = TRUE
		)
	`, levelID, authKey).Scan(&exists)
	return exists, err
}
