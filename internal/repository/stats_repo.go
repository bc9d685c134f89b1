package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"odo-backend/internal/models"
)

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// UpsertHourly adds one closed track's contribution to the user's hourly
// bucket. The ON CONFLICT increment is a single atomic statement, so
// concurrent closures for the same bucket cannot lose updates.
func (r *StatsRepo) UpsertHourly(ctx context.Context, userID uuid.UUID, date string, hour int, minutes int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hourly_stats (user_id, date, hour, total_minutes, total_tracks)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (user_id, date, hour) DO UPDATE
		SET total_minutes = hourly_stats.total_minutes + EXCLUDED.total_minutes,
		    total_tracks  = hourly_stats.total_tracks + 1
	`, userID, date, hour, minutes)
	return err
}

// UpsertDaily adds one closed track's contribution to the user's daily bucket.
func (r *StatsRepo) UpsertDaily(ctx context.Context, userID uuid.UUID, date string, minutes, earnings int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO daily_stats (user_id, date, total_minutes, total_tracks, total_earnings)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (user_id, date) DO UPDATE
		SET total_minutes  = daily_stats.total_minutes + EXCLUDED.total_minutes,
		    total_tracks   = daily_stats.total_tracks + 1,
		    total_earnings = daily_stats.total_earnings + EXCLUDED.total_earnings
	`, userID, date, minutes, earnings)
	return err
}

// UpsertGroupDaily adds one closure to the group's daily bucket. uniqueDelta
// is 1 only for the contributing user's first closure of the day.
func (r *StatsRepo) UpsertGroupDaily(ctx context.Context, groupID uuid.UUID, date string, minutes, uniqueDelta int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_daily_stats (group_id, date, total_minutes, total_tracks, total_unique_users)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (group_id, date) DO UPDATE
		SET total_minutes      = group_daily_stats.total_minutes + EXCLUDED.total_minutes,
		    total_tracks       = group_daily_stats.total_tracks + 1,
		    total_unique_users = group_daily_stats.total_unique_users + EXCLUDED.total_unique_users,
		    updated_at         = NOW()
	`, groupID, date, minutes, uniqueDelta)
	return err
}

func (r *StatsRepo) totalsBetween(ctx context.Context, userID uuid.UUID, start, end string) (models.StatTotals, error) {
	var t models.StatTotals
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_minutes), 0), COALESCE(SUM(total_tracks), 0)
		FROM daily_stats
		WHERE user_id = $1 AND date >= $2::date AND date <= $3::date
	`, userID, start, end).Scan(&t.Minutes, &t.Tracks)
	return t, err
}

// Summary rolls the daily buckets into today/week/month/all-time totals.
func (r *StatsRepo) Summary(ctx context.Context, userID uuid.UUID, now time.Time) (*models.StatsSummary, error) {
	today := now.Format("2006-01-02")
	weekStart := now.AddDate(0, 0, -int((now.Weekday()+6)%7)).Format("2006-01-02")
	monthStart := now.Format("2006-01") + "-01"

	var s models.StatsSummary
	var err error
	if s.Today, err = r.totalsBetween(ctx, userID, today, today); err != nil {
		return nil, err
	}
	if s.Week, err = r.totalsBetween(ctx, userID, weekStart, today); err != nil {
		return nil, err
	}
	if s.Month, err = r.totalsBetween(ctx, userID, monthStart, today); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_minutes), 0), COALESCE(SUM(total_tracks), 0)
		FROM daily_stats
		WHERE user_id = $1
	`, userID).Scan(&s.AllTime.Minutes, &s.AllTime.Tracks)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatsRepo) DailyRange(ctx context.Context, userID uuid.UUID, start, end string) ([]models.DailyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, date, total_minutes, total_tracks, total_earnings
		FROM daily_stats
		WHERE user_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date
	`, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var d models.DailyStat
		if err := rows.Scan(&d.UserID, &d.Date, &d.TotalMinutes, &d.TotalTracks, &d.TotalEarnings); err != nil {
			return nil, err
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

func (r *StatsRepo) HourlyForDate(ctx context.Context, userID uuid.UUID, date string) ([]models.HourlyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, date, hour, total_minutes, total_tracks
		FROM hourly_stats
		WHERE user_id = $1 AND date = $2::date
		ORDER BY hour
	`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.HourlyStat
	for rows.Next() {
		var h models.HourlyStat
		if err := rows.Scan(&h.UserID, &h.Date, &h.Hour, &h.TotalMinutes, &h.TotalTracks); err != nil {
			return nil, err
		}
		stats = append(stats, h)
	}
	return stats, rows.Err()
}

func (r *StatsRepo) GroupDailyRange(ctx context.Context, groupID uuid.UUID, start, end string) ([]models.GroupDailyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT group_id, date, total_minutes, total_tracks, total_unique_users, updated_at
		FROM group_daily_stats
		WHERE group_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date
	`, groupID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.GroupDailyStat
	for rows.Next() {
		var g models.GroupDailyStat
		if err := rows.Scan(&g.GroupID, &g.Date, &g.TotalMinutes, &g.TotalTracks, &g.TotalUniqueUsers, &g.UpdatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, g)
	}
	return stats, rows.Err()
}
