package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// CreateSuperseding inserts a new session and, for extension sessions,
// deactivates every previously active extension session of the same user in
// the same transaction. No intermediate state with two active extension
// sessions is ever visible.
func (r *SessionRepo) CreateSuperseding(ctx context.Context, s *models.Session, audit *models.LoginAudit) error {
	if len(s.DeviceInfo) == 0 {
		s.DeviceInfo = json.RawMessage("{}")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if s.DeviceClass == models.DeviceExtension {
		_, err = tx.Exec(ctx, `
			UPDATE user_sessions
			SET is_active = FALSE, expired_at = NOW()
			WHERE user_id = $1 AND device_class = 'extension' AND is_active = TRUE
		`, s.UserID)
		if err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO user_sessions (
			session_id, user_id, device_class, ip_address, browser, os, device_info
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING is_active, created_at, last_active_at
	`, s.SessionID, s.UserID, s.DeviceClass, s.IPAddress, s.Browser, s.OS, s.DeviceInfo).Scan(
		&s.IsActive, &s.CreatedAt, &s.LastActiveAt,
	)
	if err != nil {
		return err
	}

	if audit != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO login_audit (user_id, session_id, ip_address, user_agent, status)
			VALUES ($1, $2, $3, $4, $5)
		`, audit.UserID, audit.SessionID, audit.IPAddress, audit.UserAgent, audit.Status)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetActive looks up an active session by (session id, user id).
// Returns (nil, nil) when no such session exists.
func (r *SessionRepo) GetActive(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, device_class, ip_address, browser, os,
		       device_info, is_active, created_at, last_active_at, expired_at
		FROM user_sessions
		WHERE session_id = $1 AND user_id = $2 AND is_active = TRUE
	`
	var s models.Session
	err := r.pool.QueryRow(ctx, query, sessionID, userID).Scan(
		&s.SessionID, &s.UserID, &s.DeviceClass, &s.IPAddress, &s.Browser,
		&s.OS, &s.DeviceInfo, &s.IsActive, &s.CreatedAt, &s.LastActiveAt, &s.ExpiredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindOtherActive returns any currently active session for the user, used to
// classify why a presented session id was rejected. Returns (nil, nil) when
// the user has no active session at all.
func (r *SessionRepo) FindOtherActive(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, device_class, ip_address, browser, os,
		       device_info, is_active, created_at, last_active_at, expired_at
		FROM user_sessions
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY last_active_at DESC
		LIMIT 1
	`
	var s models.Session
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.SessionID, &s.UserID, &s.DeviceClass, &s.IPAddress, &s.Browser,
		&s.OS, &s.DeviceInfo, &s.IsActive, &s.CreatedAt, &s.LastActiveAt, &s.ExpiredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) TouchLastActive(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET last_active_at = NOW() WHERE session_id = $1`,
		sessionID,
	)
	return err
}

func (r *SessionRepo) Deactivate(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_sessions
		SET is_active = FALSE, expired_at = NOW()
		WHERE session_id = $1 AND is_active = TRUE
	`, sessionID)
	return err
}

func (r *SessionRepo) AppendAudit(ctx context.Context, audit *models.LoginAudit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_audit (user_id, session_id, ip_address, user_agent, status)
		VALUES ($1, $2, $3, $4, $5)
	`, audit.UserID, audit.SessionID, audit.IPAddress, audit.UserAgent, audit.Status)
	return err
}
