package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"odo-backend/internal/metrics"
	"odo-backend/internal/models"
)

// StatsStore is the atomic-increment surface of the aggregate tables. Every
// method is a single conditional upsert; concurrent closures for the same
// bucket must not lose updates.
type StatsStore interface {
	UpsertHourly(ctx context.Context, userID uuid.UUID, date string, hour int, minutes int64) error
	UpsertDaily(ctx context.Context, userID uuid.UUID, date string, minutes, earnings int64) error
	UpsertGroupDaily(ctx context.Context, groupID uuid.UUID, date string, minutes, uniqueDelta int64) error
}

// GroupResolver answers "which group is this user in", the only lookup the
// aggregation core needs from user management.
type GroupResolver interface {
	GroupIDForUser(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

// ClosureResolver decides whether a specific closed record is the user's
// first of its UTC date; used for the unique-user increment without trusting
// request-level state or job timing.
type ClosureResolver interface {
	FirstClosureOfDay(ctx context.Context, userID uuid.UUID, recordID uuid.UUID, date string) (bool, error)
}

// Enqueuer pushes fire-and-forget jobs onto the background queues.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) error
}

// Publisher fans a stats update out to connected dashboards.
type Publisher interface {
	PublishStatsUpdate(ctx context.Context, update models.StatsUpdate) error
}

type Aggregator struct {
	stats     StatsStore
	users     GroupResolver
	closures  ClosureResolver
	queue     Enqueuer
	publisher Publisher
}

func NewAggregator(stats StatsStore, users GroupResolver, closures ClosureResolver, queue Enqueuer, publisher Publisher) *Aggregator {
	return &Aggregator{stats: stats, users: users, closures: closures, queue: queue, publisher: publisher}
}

// EarningsFor derives the virtual-earnings figure from an actual duration.
// Computed once, at closure.
func EarningsFor(actualSeconds int) int64 {
	earnings := int64(actualSeconds / 60)
	if earnings < 1 {
		earnings = 1
	}
	return earnings
}

// OnClosed folds one closed listening record into the aggregate views.
// Hourly and daily counters are updated synchronously; the group rollup and
// the legacy earnings mirror run as queued best-effort jobs. Failures here
// never undo the closure itself; they are logged loudly and counted,
// because the cost is a silent undercount, not corruption.
func (a *Aggregator) OnClosed(ctx context.Context, rec *models.ListeningRecord, earnings int64) {
	if rec.EndedAt == nil || rec.ActualDurationSeconds == nil {
		log.Error().Str("record_id", rec.ID.String()).Msg("aggregator invoked with an open record")
		return
	}

	// Bucket keys are UTC on both sides, here and in the store's date casts,
	// so a day-boundary closure lands in one bucket regardless of server TZ.
	endedAt := rec.EndedAt.UTC()
	date := endedAt.Format("2006-01-02")
	hour := endedAt.Hour()
	minutes := int64(*rec.ActualDurationSeconds / 60)

	if err := a.stats.UpsertHourly(ctx, rec.UserID, date, hour, minutes); err != nil {
		metrics.AggregateUpdateFailures.WithLabelValues("hourly_stats").Inc()
		log.Error().Err(err).
			Str("record_id", rec.ID.String()).
			Str("date", date).Int("hour", hour).
			Msg("hourly stat update failed; bucket will undercount")
	}

	if err := a.stats.UpsertDaily(ctx, rec.UserID, date, minutes, earnings); err != nil {
		metrics.AggregateUpdateFailures.WithLabelValues("daily_stats").Inc()
		log.Error().Err(err).
			Str("record_id", rec.ID.String()).
			Str("date", date).
			Msg("daily stat update failed; bucket will undercount")
	}

	if err := a.queue.Enqueue(ctx, "group-stats", models.GroupStatsJob{
		UserID:   rec.UserID,
		RecordID: rec.ID,
		Minutes:  minutes,
		Date:     date,
	}); err != nil {
		log.Error().Err(err).Str("record_id", rec.ID.String()).Msg("failed to queue group stat update")
	}

	if err := a.queue.Enqueue(ctx, "earnings-mirror", models.EarningsMirrorJob{
		UserID:   rec.UserID,
		Earnings: earnings,
	}); err != nil {
		log.Error().Err(err).Str("record_id", rec.ID.String()).Msg("failed to queue earnings mirror")
	}

	if a.publisher != nil {
		update := models.StatsUpdate{
			UserID:        rec.UserID,
			TrackID:       rec.TrackID,
			MinutesAdded:  minutes,
			EarningsAdded: earnings,
			ClosedAt:      endedAt,
		}
		if err := a.publisher.PublishStatsUpdate(ctx, update); err != nil {
			log.Warn().Err(err).Str("user_id", rec.UserID.String()).Msg("stats update publish failed")
		}
	}
}

// ApplyGroupContribution performs the deferred group rollup for one closure.
// Invoked by the worker pool, never on the request path.
func (a *Aggregator) ApplyGroupContribution(ctx context.Context, job models.GroupStatsJob) error {
	groupID, err := a.users.GroupIDForUser(ctx, job.UserID)
	if err != nil {
		return err
	}
	if groupID == nil {
		return nil // user is not in a group, nothing to roll up
	}

	// Decided per record: a second closure committing before this job runs
	// must not rob the first one of its unique-user increment.
	first, err := a.closures.FirstClosureOfDay(ctx, job.UserID, job.RecordID, job.Date)
	if err != nil {
		return err
	}
	var uniqueDelta int64
	if first {
		uniqueDelta = 1
	}

	if err := a.stats.UpsertGroupDaily(ctx, *groupID, job.Date, job.Minutes, uniqueDelta); err != nil {
		metrics.AggregateUpdateFailures.WithLabelValues("group_daily_stats").Inc()
		return err
	}
	return nil
}

// BucketOf returns the UTC (date, hour) aggregation key containing ts.
func BucketOf(ts time.Time) (string, int) {
	ts = ts.UTC()
	return ts.Format("2006-01-02"), ts.Hour()
}
