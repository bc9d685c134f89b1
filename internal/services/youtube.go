package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	yt "github.com/kkdai/youtube/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"odo-backend/internal/models"
)

const metadataCacheTTL = 24 * time.Hour

// YouTubeService resolves track metadata for ids the client reported without
// a title. Lookups are cached in Redis; everything here is best effort and
// runs off the request path.
type YouTubeService struct {
	ytClient *yt.Client
	cache    *redis.Client
}

func NewYouTubeService(cache *redis.Client) *YouTubeService {
	return &YouTubeService{ytClient: &yt.Client{}, cache: cache}
}

// GetMetadata fetches title/channel/duration/thumbnail for a video id,
// consulting the cache first.
func (s *YouTubeService) GetMetadata(ctx context.Context, videoID string) (*models.Track, error) {
	cacheKey := "track_meta:" + videoID

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var track models.Track
			if json.Unmarshal([]byte(cached), &track) == nil {
				return &track, nil
			}
		}
	}

	video, err := s.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	track := &models.Track{
		TrackID:         videoID,
		Title:           video.Title,
		Artist:          video.Author,
		DurationSeconds: int(video.Duration.Seconds()),
	}
	if len(video.Thumbnails) > 0 {
		track.ThumbnailURL = video.Thumbnails[0].URL
	}

	if s.cache != nil {
		if data, err := json.Marshal(track); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, metadataCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Str("track_id", videoID).Msg("metadata cache write failed")
			}
		}
	}

	return track, nil
}
