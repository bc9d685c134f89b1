package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type RecordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

// rowQuerier is the slice of pgxpool.Pool the open-record cycle needs; it
// lets the insert/select dance be exercised without a database.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OpenIfAbsent opens a listening record for (user, correlation id) unless one
// is already open, in which case the existing record id is returned. The
// partial unique index on open records makes the insert race-safe against
// retried start events.
func (r *RecordRepo) OpenIfAbsent(ctx context.Context, rec *models.ListeningRecord) (bool, error) {
	return openIfAbsent(ctx, r.pool, rec)
}

func openIfAbsent(ctx context.Context, db rowQuerier, rec *models.ListeningRecord) (bool, error) {
	insert := `
		INSERT INTO listening_records (
			user_id, session_id, correlation_id, track_id, playlist_id,
			nominal_duration_seconds, started_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, correlation_id) WHERE ended_at IS NULL DO NOTHING
		RETURNING id, started_at
	`
	selectOpen := `
		SELECT id, started_at FROM listening_records
		WHERE user_id = $1 AND correlation_id = $2 AND ended_at IS NULL
	`

	for attempt := 0; attempt < 3; attempt++ {
		err := db.QueryRow(ctx, insert,
			rec.UserID, rec.SessionID, rec.CorrelationID, rec.TrackID,
			rec.PlaylistID, rec.NominalDurationSeconds, rec.StartedAt,
		).Scan(&rec.ID, &rec.StartedAt)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, err
		}

		// Duplicate start: hand back the record that is already open.
		err = db.QueryRow(ctx, selectOpen, rec.UserID, rec.CorrelationID).Scan(&rec.ID, &rec.StartedAt)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, err
		}
		// The conflicting record closed between the insert and the select,
		// so the open slot is free again and the insert can be retried.
	}
	return false, errors.New("open record slot contended")
}

// CloseByCorrelation transitions the open record for (user, correlation id)
// to closed. The conditional update guarantees the transition happens at
// most once; (nil, nil) means there was nothing to close.
func (r *RecordRepo) CloseByCorrelation(ctx context.Context, userID uuid.UUID, correlationID string, actualSeconds int, reason string, endedAt time.Time) (*models.ListeningRecord, error) {
	// When the client reported no position, fall back to wall-clock elapsed
	// time since the record opened, clamped to a 12h ceiling.
	query := `
		UPDATE listening_records
		SET actual_duration_seconds = CASE
		        WHEN $1 > 0 THEN $1
		        ELSE GREATEST(0, LEAST(43200, EXTRACT(EPOCH FROM ($3::timestamptz - started_at))::INT))
		    END,
		    close_reason = $2,
		    ended_at = $3
		WHERE user_id = $4 AND correlation_id = $5 AND ended_at IS NULL
		RETURNING id, user_id, session_id, correlation_id, track_id, playlist_id,
		          nominal_duration_seconds, actual_duration_seconds, close_reason,
		          started_at, ended_at
	`
	var rec models.ListeningRecord
	var sessionID *string
	err := r.pool.QueryRow(ctx, query, actualSeconds, reason, endedAt, userID, correlationID).Scan(
		&rec.ID, &rec.UserID, &sessionID, &rec.CorrelationID, &rec.TrackID,
		&rec.PlaylistID, &rec.NominalDurationSeconds, &rec.ActualDurationSeconds,
		&rec.CloseReason, &rec.StartedAt, &rec.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if sessionID != nil {
		rec.SessionID = *sessionID
	}
	return &rec, nil
}

// FirstClosureOfDay reports whether the given closed record is the user's
// earliest closure on the given UTC date. The answer is a property of the
// record, not of when the question is asked: however late the group rollup
// runs, exactly one record per (user, date) wins, with ids breaking ties.
func (r *RecordRepo) FirstClosureOfDay(ctx context.Context, userID uuid.UUID, recordID uuid.UUID, date string) (bool, error) {
	var first bool
	err := r.pool.QueryRow(ctx, `
		SELECT NOT EXISTS (
			SELECT 1
			FROM listening_records other
			JOIN listening_records own ON own.id = $2
			WHERE other.user_id = $1
			  AND other.id <> own.id
			  AND other.ended_at IS NOT NULL
			  AND (other.ended_at AT TIME ZONE 'UTC')::date = $3::date
			  AND (other.ended_at < own.ended_at
			       OR (other.ended_at = own.ended_at AND other.id < own.id))
		)
	`, userID, recordID, date).Scan(&first)
	return first, err
}

type HistoryFilter struct {
	StartDate  string
	EndDate    string
	TrackID    string
	PlaylistID string
	Page       int
	Limit      int
}

// History returns the user's closed listening records, newest first, with
// optional date/track/playlist filters.
func (r *RecordRepo) History(ctx context.Context, userID uuid.UUID, f HistoryFilter) ([]models.ListeningRecord, int64, error) {
	where := `WHERE user_id = $1 AND ended_at IS NOT NULL`
	args := []interface{}{userID}

	if f.StartDate != "" {
		args = append(args, f.StartDate)
		where += ` AND ended_at::date >= $` + itoa(len(args))
	}
	if f.EndDate != "" {
		args = append(args, f.EndDate)
		where += ` AND ended_at::date <= $` + itoa(len(args))
	}
	if f.TrackID != "" {
		args = append(args, f.TrackID)
		where += ` AND track_id = $` + itoa(len(args))
	}
	if f.PlaylistID != "" {
		args = append(args, f.PlaylistID)
		where += ` AND playlist_id = $` + itoa(len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listening_records `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := `
		SELECT id, user_id, COALESCE(session_id, ''), correlation_id, track_id, playlist_id,
		       nominal_duration_seconds, actual_duration_seconds, close_reason,
		       started_at, ended_at
		FROM listening_records ` + where + `
		ORDER BY ended_at DESC
		LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []models.ListeningRecord
	for rows.Next() {
		var rec models.ListeningRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.SessionID, &rec.CorrelationID, &rec.TrackID,
			&rec.PlaylistID, &rec.NominalDurationSeconds, &rec.ActualDurationSeconds,
			&rec.CloseReason, &rec.StartedAt, &rec.EndedAt,
		); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// Recent returns the user's most recently closed records.
func (r *RecordRepo) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.ListeningRecord, error) {
	records, _, err := r.History(ctx, userID, HistoryFilter{Page: 1, Limit: limit})
	return records, err
}

func itoa(n int) string { return strconv.Itoa(n) }
