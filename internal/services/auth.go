package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"odo-backend/internal/middleware"
	"odo-backend/internal/models"
)

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

type GroupStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

type AuthService struct {
	users  UserStore
	groups GroupStore
	jwt    *middleware.JWTAuth
}

func NewAuthService(users UserStore, groups GroupStore, jwtAuth *middleware.JWTAuth) *AuthService {
	return &AuthService{users: users, groups: groups, jwt: jwtAuth}
}

// Login verifies credentials and issues a signed bearer token. The group's
// goal settings ride along in the response so the extension can render
// progress without a second round trip.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	fields := make(map[string]string)
	if req.Username == "" {
		fields["username"] = "Username is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Invalid username or password"}
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to update last login")
	}

	resp := &models.LoginResponse{Token: token, User: user}
	if user.GroupID != nil {
		group, err := s.groups.GetByID(ctx, *user.GroupID)
		if err != nil {
			log.Warn().Err(err).Str("group_id", user.GroupID.String()).Msg("failed to load group for login response")
		} else {
			resp.Group = group
		}
	}
	return resp, nil
}

// Verify resolves the authenticated user for token-check endpoints.
func (s *AuthService) Verify(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Invalid user"}
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}
