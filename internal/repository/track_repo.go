package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type TrackRepo struct {
	pool *pgxpool.Pool
}

func NewTrackRepo(pool *pgxpool.Pool) *TrackRepo {
	return &TrackRepo{pool: pool}
}

// EnsureExists registers a track on first sighting. Reports whether a new
// row was inserted so the caller can queue a metadata lookup.
func (r *TrackRepo) EnsureExists(ctx context.Context, t *models.Track) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO tracks (track_id, title, artist, duration_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (track_id) DO NOTHING
	`, t.TrackID, t.Title, t.Artist, t.DurationSeconds)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns (nil, nil) for unknown tracks.
func (r *TrackRepo) Get(ctx context.Context, trackID string) (*models.Track, error) {
	var t models.Track
	err := r.pool.QueryRow(ctx, `
		SELECT track_id, title, artist, duration_seconds, thumbnail_url, created_at
		FROM tracks
		WHERE track_id = $1
	`, trackID).Scan(&t.TrackID, &t.Title, &t.Artist, &t.DurationSeconds, &t.ThumbnailURL, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// UpdateMetadata fills in fields the client did not supply; existing
// non-empty values win.
func (r *TrackRepo) UpdateMetadata(ctx context.Context, t *models.Track) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tracks
		SET title            = CASE WHEN title = '' THEN $2 ELSE title END,
		    artist           = CASE WHEN artist = '' THEN $3 ELSE artist END,
		    duration_seconds = CASE WHEN duration_seconds = 0 THEN $4 ELSE duration_seconds END,
		    thumbnail_url    = CASE WHEN thumbnail_url = '' THEN $5 ELSE thumbnail_url END
		WHERE track_id = $1
	`, t.TrackID, t.Title, t.Artist, t.DurationSeconds, t.ThumbnailURL)
	return err
}
