package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"odo-backend/internal/metrics"
	"odo-backend/internal/models"
)

const maxPlaybackSeconds = 43200 // 12h cap on a single listening record

type EventStore interface {
	Insert(ctx context.Context, e *models.PlaybackEvent) error
}

type RecordStore interface {
	OpenIfAbsent(ctx context.Context, rec *models.ListeningRecord) (bool, error)
	CloseByCorrelation(ctx context.Context, userID uuid.UUID, correlationID string, actualSeconds int, reason string, endedAt time.Time) (*models.ListeningRecord, error)
}

type TrackRegistry interface {
	EnsureExists(ctx context.Context, t *models.Track) (bool, error)
}

// IngestService validates playback events, persists them for audit and
// drives the listening-record state machine for the types that matter.
type IngestService struct {
	events     EventStore
	records    RecordStore
	tracks     TrackRegistry
	aggregator *Aggregator
	queue      Enqueuer
	now        func() time.Time
}

func NewIngestService(events EventStore, records RecordStore, tracks TrackRegistry, aggregator *Aggregator, queue Enqueuer) *IngestService {
	return &IngestService{
		events:     events,
		records:    records,
		tracks:     tracks,
		aggregator: aggregator,
		queue:      queue,
		now:        time.Now,
	}
}

// Ingest accepts one client-reported playback event. The raw event is always
// persisted; only start/finish/skip touch the listening record. A
// finish/skip that matches no open record is an accepted no-op, since clients
// legitimately deliver stray closes after crashes and expiries.
func (s *IngestService) Ingest(ctx context.Context, userID uuid.UUID, sessionID, ip string, req models.IngestEventRequest) (*models.IngestEventResponse, error) {
	eventType := models.EventType(req.EventType)

	fields := make(map[string]string)
	if req.TrackID == "" {
		fields["track_id"] = "Track id is required"
	}
	if !eventType.Valid() {
		fields["event_type"] = "Unknown event type"
	}
	if eventType.Closes() && req.CorrelationID == "" {
		fields["correlation_id"] = "Correlation id is required for finish and skip events"
	}
	if len(fields) > 0 {
		metrics.EventsRejected.Inc()
		return nil, &ValidationError{Fields: fields}
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = newCorrelationID()
	}

	event := &models.PlaybackEvent{
		UserID:          userID,
		SessionID:       sessionID,
		CorrelationID:   correlationID,
		TrackID:         req.TrackID,
		PlaylistID:      req.PlaylistID,
		EventType:       eventType,
		PositionSeconds: req.Position,
		DurationSeconds: req.Duration,
		IPAddress:       ip,
	}
	if req.ClientTimestamp > 0 {
		ts := time.UnixMilli(req.ClientTimestamp)
		event.ClientTimestamp = &ts
	}

	if err := s.events.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist playback event: %w", err)
	}
	metrics.EventsIngested.WithLabelValues(string(eventType)).Inc()

	s.registerTrack(ctx, req)

	resp := &models.IngestEventResponse{Accepted: true, EventID: event.ID}

	switch eventType {
	case models.EventStart:
		recordID, err := s.openRecord(ctx, userID, sessionID, correlationID, req)
		if err != nil {
			return nil, err
		}
		resp.ListeningRecordID = &recordID

	case models.EventFinish, models.EventSkip:
		rec, earnings, err := s.closeRecord(ctx, userID, correlationID, string(eventType), req)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			resp.ListeningRecordID = &rec.ID
			resp.Earnings = earnings
		}

	default:
		// Telemetry-only types are recorded but drive no state transition.
	}

	return resp, nil
}

func (s *IngestService) openRecord(ctx context.Context, userID uuid.UUID, sessionID, correlationID string, req models.IngestEventRequest) (uuid.UUID, error) {
	rec := &models.ListeningRecord{
		UserID:                 userID,
		SessionID:              sessionID,
		CorrelationID:          correlationID,
		TrackID:                req.TrackID,
		PlaylistID:             req.PlaylistID,
		NominalDurationSeconds: req.Duration,
		StartedAt:              s.now(),
	}

	created, err := s.records.OpenIfAbsent(ctx, rec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to open listening record: %w", err)
	}
	if created {
		metrics.RecordsOpened.Inc()
	} else {
		log.Debug().
			Str("correlation_id", correlationID).
			Str("record_id", rec.ID.String()).
			Msg("duplicate start; reusing open record")
	}
	return rec.ID, nil
}

func (s *IngestService) closeRecord(ctx context.Context, userID uuid.UUID, correlationID, reason string, req models.IngestEventRequest) (*models.ListeningRecord, int64, error) {
	endedAt := s.now()

	// The client's reported position is the elapsed figure of record; when
	// absent the store falls back to wall-clock time since the start event.
	actual := req.Position
	if actual < 0 {
		actual = 0
	}
	if actual > maxPlaybackSeconds {
		actual = maxPlaybackSeconds
	}

	rec, err := s.records.CloseByCorrelation(ctx, userID, correlationID, actual, reason, endedAt)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to close listening record: %w", err)
	}
	if rec == nil {
		// Missing or already closed: a logged no-op, never an error.
		metrics.CloseNoops.Inc()
		log.Warn().
			Str("user_id", userID.String()).
			Str("correlation_id", correlationID).
			Str("reason", reason).
			Msg("close event matched no open record")
		return nil, 0, nil
	}

	metrics.RecordsClosed.WithLabelValues(reason).Inc()
	earnings := EarningsFor(*rec.ActualDurationSeconds)
	s.aggregator.OnClosed(ctx, rec, earnings)
	return rec, earnings, nil
}

// registerTrack files the track on first sighting and queues a metadata
// lookup when the client supplied no title. Best effort only.
func (s *IngestService) registerTrack(ctx context.Context, req models.IngestEventRequest) {
	if s.tracks == nil {
		return
	}
	inserted, err := s.tracks.EnsureExists(ctx, &models.Track{
		TrackID:         req.TrackID,
		Title:           req.Title,
		Artist:          req.Artist,
		DurationSeconds: req.Duration,
	})
	if err != nil {
		log.Warn().Err(err).Str("track_id", req.TrackID).Msg("track registration failed")
		return
	}
	if inserted && req.Title == "" && s.queue != nil {
		if err := s.queue.Enqueue(ctx, "track-metadata", models.TrackMetadataJob{TrackID: req.TrackID}); err != nil {
			log.Warn().Err(err).Str("track_id", req.TrackID).Msg("failed to queue metadata lookup")
		}
	}
}

func newCorrelationID() string {
	b := make([]byte, 5)
	rand.Read(b)
	return "event-" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + hex.EncodeToString(b)
}
