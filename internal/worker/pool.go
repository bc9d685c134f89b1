package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"odo-backend/internal/metrics"
	"odo-backend/internal/models"
	"odo-backend/internal/repository"
	"odo-backend/internal/services"
)

// Pool drains the fire-and-forget queues: group stat rollups, the legacy
// earnings mirror and track metadata lookups. These jobs are deliberately
// off the request path: a failure here undercounts a side table but never
// disturbs a closed listening record.
type Pool struct {
	redis       *redis.Client
	aggregator  *services.Aggregator
	userRepo    *repository.UserRepo
	trackRepo   *repository.TrackRepo
	youtube     *services.YouTubeService
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	aggregator *services.Aggregator,
	userRepo *repository.UserRepo,
	trackRepo *repository.TrackRepo,
	youtube *services.YouTubeService,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		aggregator:  aggregator,
		userRepo:    userRepo,
		trackRepo:   trackRepo,
		youtube:     youtube,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{
		"queue:group-stats",
		"queue:earnings-mirror",
		"queue:track-metadata",
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Info().Int("workers", p.workerCount).Msg("worker pool started")
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with a short timeout so shutdown is noticed promptly
		result, err := p.redis.BLPop(ctx, 5*time.Second, queues...).Result()
		if err != nil {
			continue // timeout or transient error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error().Err(err).Int("worker", id).Msg("failed to parse job")
			continue
		}

		// BLPOP hands each queued entry to exactly one worker. The lock
		// guards the other duplication path: a producer enqueueing the
		// same job id twice.
		lockKey := "job_lock:" + job.ID.String()
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		if err := p.process(ctx, &job); err != nil {
			metrics.JobsProcessed.WithLabelValues(job.Type, "error").Inc()
			log.Error().Err(err).
				Str("job_id", job.ID.String()).
				Str("job_type", job.Type).
				Msg("background job failed")
			continue
		}
		metrics.JobsProcessed.WithLabelValues(job.Type, "ok").Inc()
	}
}

func (p *Pool) process(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case "group-stats":
		var payload models.GroupStatsJob
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("bad group-stats payload: %w", err)
		}
		return p.aggregator.ApplyGroupContribution(ctx, payload)

	case "earnings-mirror":
		var payload models.EarningsMirrorJob
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("bad earnings-mirror payload: %w", err)
		}
		return p.userRepo.AddVirtualEarnings(ctx, payload.UserID, payload.Earnings)

	case "track-metadata":
		var payload models.TrackMetadataJob
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("bad track-metadata payload: %w", err)
		}
		track, err := p.youtube.GetMetadata(ctx, payload.TrackID)
		if err != nil {
			return err
		}
		return p.trackRepo.UpdateMetadata(ctx, track)

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
