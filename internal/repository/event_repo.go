package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Insert persists a raw playback event. Events are write-once; nothing ever
// updates or re-reads them on the hot path.
func (r *EventRepo) Insert(ctx context.Context, e *models.PlaybackEvent) error {
	query := `
		INSERT INTO listening_events (
			user_id, session_id, correlation_id, track_id, playlist_id,
			event_type, position_seconds, duration_seconds, client_timestamp, ip_address
		) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query,
		e.UserID, e.SessionID, e.CorrelationID, e.TrackID, e.PlaylistID,
		e.EventType, e.PositionSeconds, e.DurationSeconds, e.ClientTimestamp, e.IPAddress,
	).Scan(&e.ID, &e.CreatedAt)
}
