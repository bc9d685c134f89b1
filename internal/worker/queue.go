package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"odo-backend/internal/models"
)

// Queue pushes fire-and-forget jobs onto Redis lists and publishes dashboard
// updates over pub/sub. It is the write side of the worker pool.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}
	job := models.Job{ID: uuid.New(), Type: jobType, Payload: raw}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.redis.RPush(ctx, "queue:"+jobType, data).Err()
}

// PublishStatsUpdate fans a stats refresh out to the user's open dashboards.
func (q *Queue) PublishStatsUpdate(ctx context.Context, update models.StatsUpdate) error {
	msg := models.WSMessage{Type: "stats_update", Payload: update}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.redis.Publish(ctx, "user_updates:"+update.UserID.String(), string(data)).Err()
}
