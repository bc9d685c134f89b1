package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"odo-backend/internal/models"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, levelID int, permKey string) (bool, error)
}

type LevelResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PermissionService answers whether a user's level grants a named permission.
type PermissionService struct {
	users LevelResolver
	perms PermissionStore
}

func NewPermissionService(users LevelResolver, perms PermissionStore) *PermissionService {
	return &PermissionService{users: users, perms: perms}
}

func (s *PermissionService) HasPermission(ctx context.Context, userID uuid.UUID, permKey string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load user for permission check: %w", err)
	}
	return s.perms.HasPermission(ctx, user.LevelID, permKey)
}
