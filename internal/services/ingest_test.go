package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"odo-backend/internal/models"
)

type fakeEventStore struct {
	events []*models.PlaybackEvent
	err    error
}

func (f *fakeEventStore) Insert(ctx context.Context, e *models.PlaybackEvent) error {
	if f.err != nil {
		return f.err
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	f.events = append(f.events, e)
	return nil
}

// fakeRecordStore mimics the partial-unique-index semantics of the real
// store: one open record per (user, correlation), closes are conditional.
type fakeRecordStore struct {
	open   map[string]*models.ListeningRecord
	closed []*models.ListeningRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{open: make(map[string]*models.ListeningRecord)}
}

func (f *fakeRecordStore) key(userID uuid.UUID, correlationID string) string {
	return userID.String() + "/" + correlationID
}

func (f *fakeRecordStore) OpenIfAbsent(ctx context.Context, rec *models.ListeningRecord) (bool, error) {
	k := f.key(rec.UserID, rec.CorrelationID)
	if existing, ok := f.open[k]; ok {
		*rec = *existing
		return false, nil
	}
	rec.ID = uuid.New()
	f.open[k] = rec
	return true, nil
}

func (f *fakeRecordStore) CloseByCorrelation(ctx context.Context, userID uuid.UUID, correlationID string, actualSeconds int, reason string, endedAt time.Time) (*models.ListeningRecord, error) {
	k := f.key(userID, correlationID)
	rec, ok := f.open[k]
	if !ok {
		return nil, nil
	}
	delete(f.open, k)

	actual := actualSeconds
	if actual <= 0 {
		actual = int(endedAt.Sub(rec.StartedAt).Seconds())
	}
	rec.ActualDurationSeconds = &actual
	rec.CloseReason = &reason
	rec.EndedAt = &endedAt
	f.closed = append(f.closed, rec)
	return rec, nil
}

type fakeTrackRegistry struct {
	tracks   map[string]*models.Track
	inserted []string
}

func newFakeTrackRegistry() *fakeTrackRegistry {
	return &fakeTrackRegistry{tracks: make(map[string]*models.Track)}
}

func (f *fakeTrackRegistry) EnsureExists(ctx context.Context, t *models.Track) (bool, error) {
	if _, ok := f.tracks[t.TrackID]; ok {
		return false, nil
	}
	f.tracks[t.TrackID] = t
	f.inserted = append(f.inserted, t.TrackID)
	return true, nil
}

func newTestIngest() (*IngestService, *fakeEventStore, *fakeRecordStore, *fakeTrackRegistry, *fakeStatsStore, *fakeQueue) {
	events := &fakeEventStore{}
	records := newFakeRecordStore()
	tracks := newFakeTrackRegistry()
	stats := &fakeStatsStore{}
	queue := &fakeQueue{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, queue, queue)
	svc := NewIngestService(events, records, tracks, agg, queue)
	return svc, events, records, tracks, stats, queue
}

func TestIngestStartOpensRecord(t *testing.T) {
	svc, events, records, _, _, _ := newTestIngest()
	userID := uuid.New()

	resp, err := svc.Ingest(context.Background(), userID, "sess-ext", "10.0.0.1", models.IngestEventRequest{
		TrackID:       "dQw4w9WgXcQ",
		EventType:     "start",
		Duration:      240,
		CorrelationID: "event-abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("expected accepted response")
	}
	if resp.ListeningRecordID == nil {
		t.Fatalf("expected a listening record id")
	}
	if len(events.events) != 1 {
		t.Fatalf("raw event must always be persisted")
	}
	if len(records.open) != 1 {
		t.Fatalf("expected one open record")
	}
}

func TestIngestDuplicateStartReturnsExistingRecord(t *testing.T) {
	svc, _, records, _, _, _ := newTestIngest()
	userID := uuid.New()

	req := models.IngestEventRequest{TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-abc"}
	first, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", req)
	if err != nil {
		t.Fatalf("duplicate start must not error: %v", err)
	}
	if *first.ListeningRecordID != *second.ListeningRecordID {
		t.Fatalf("duplicate start must reuse the open record")
	}
	if len(records.open) != 1 {
		t.Fatalf("expected exactly one open record, got %d", len(records.open))
	}
}

func TestIngestFinishClosesAndAggregates(t *testing.T) {
	svc, _, records, _, stats, _ := newTestIngest()
	userID := uuid.New()

	_, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-abc", Duration: 240,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "finish", CorrelationID: "event-abc", Position: 230,
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if resp.ListeningRecordID == nil {
		t.Fatalf("expected the closed record id")
	}
	if resp.Earnings != 3 {
		t.Fatalf("expected 3 earnings for 230s, got %d", resp.Earnings)
	}
	if len(records.closed) != 1 {
		t.Fatalf("expected one closed record")
	}
	if *records.closed[0].CloseReason != "finish" {
		t.Fatalf("expected finish close reason, got %q", *records.closed[0].CloseReason)
	}
	if len(stats.hourlyCalls) != 1 || len(stats.dailyCalls) != 1 {
		t.Fatalf("closure must reach the aggregates exactly once")
	}
}

func TestIngestDoubleFinishIsAcceptedNoop(t *testing.T) {
	svc, events, _, _, stats, _ := newTestIngest()
	userID := uuid.New()

	start := models.IngestEventRequest{TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-abc"}
	finish := models.IngestEventRequest{TrackID: "dQw4w9WgXcQ", EventType: "finish", CorrelationID: "event-abc", Position: 120}

	if _, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", start); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", finish); err != nil {
		t.Fatalf("first finish: %v", err)
	}

	resp, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", finish)
	if err != nil {
		t.Fatalf("second finish must not error: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("stray closes are accepted no-ops")
	}
	if resp.ListeningRecordID != nil || resp.Earnings != 0 {
		t.Fatalf("no-op close must not report a record or earnings")
	}
	if len(stats.dailyCalls) != 1 {
		t.Fatalf("aggregates must be applied exactly once, got %d daily upserts", len(stats.dailyCalls))
	}
	if len(events.events) != 3 {
		t.Fatalf("every event is persisted regardless, got %d", len(events.events))
	}
}

func TestIngestFinishWithoutOpenRecordIsAccepted(t *testing.T) {
	svc, _, _, _, _, _ := newTestIngest()

	resp, err := svc.Ingest(context.Background(), uuid.New(), "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "skip", CorrelationID: "event-unknown", Position: 20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Accepted || resp.ListeningRecordID != nil {
		t.Fatalf("unknown-correlation close is an accepted no-op, got %+v", resp)
	}
}

func TestIngestValidation(t *testing.T) {
	svc, events, _, _, _, _ := newTestIngest()

	cases := []struct {
		name  string
		req   models.IngestEventRequest
		field string
	}{
		{"missing track", models.IngestEventRequest{EventType: "start"}, "track_id"},
		{"unknown type", models.IngestEventRequest{TrackID: "x", EventType: "rewind"}, "event_type"},
		{"finish without correlation", models.IngestEventRequest{TrackID: "x", EventType: "finish"}, "correlation_id"},
	}

	for _, c := range cases {
		_, err := svc.Ingest(context.Background(), uuid.New(), "", "10.0.0.1", c.req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", c.name, err)
		}
		if _, ok := verr.Fields[c.field]; !ok {
			t.Fatalf("%s: expected %q field error, got %+v", c.name, c.field, verr.Fields)
		}
	}
	if len(events.events) != 0 {
		t.Fatalf("rejected events must not be persisted")
	}
}

func TestIngestTelemetryTypesRecordOnly(t *testing.T) {
	svc, events, records, _, _, _ := newTestIngest()
	userID := uuid.New()

	for _, et := range []string{"pause", "resume", "seek", "close", "session_expired", "update", "timeout"} {
		resp, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
			TrackID: "dQw4w9WgXcQ", EventType: et,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", et, err)
		}
		if !resp.Accepted || resp.ListeningRecordID != nil {
			t.Fatalf("%s: telemetry types must not touch records", et)
		}
	}
	if len(events.events) != 7 {
		t.Fatalf("expected all telemetry events persisted, got %d", len(events.events))
	}
	if len(records.open)+len(records.closed) != 0 {
		t.Fatalf("telemetry types drive no state transition")
	}
}

func TestIngestGeneratesCorrelationIDWhenAbsent(t *testing.T) {
	svc, events, _, _, _, _ := newTestIngest()

	_, err := svc.Ingest(context.Background(), uuid.New(), "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "start",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := events.events[0].CorrelationID
	if !strings.HasPrefix(got, "event-") {
		t.Fatalf("expected generated correlation id, got %q", got)
	}
}

func TestIngestPositionClampAndWallClockFallback(t *testing.T) {
	svc, _, records, _, _, _ := newTestIngest()
	userID := uuid.New()

	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := start
	svc.now = func() time.Time { return clock }

	if _, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-abc",
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// No reported position: actual duration falls back to wall clock.
	clock = start.Add(90 * time.Second)
	if _, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "finish", CorrelationID: "event-abc",
	}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got := *records.closed[0].ActualDurationSeconds; got != 90 {
		t.Fatalf("expected 90s wall-clock fallback, got %d", got)
	}

	// Absurd reported position: clamped to the 12h cap.
	if _, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-def",
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), userID, "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "finish", CorrelationID: "event-def", Position: 99999999,
	}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got := *records.closed[1].ActualDurationSeconds; got != maxPlaybackSeconds {
		t.Fatalf("expected clamp to %d, got %d", maxPlaybackSeconds, got)
	}
}

func TestIngestRegistersTrackAndQueuesMetadata(t *testing.T) {
	svc, _, _, tracks, _, queue := newTestIngest()

	// No client title: metadata lookup is queued on first sighting.
	if _, err := svc.Ingest(context.Background(), uuid.New(), "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-abc",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks.inserted) != 1 {
		t.Fatalf("expected track registration")
	}
	var metaJobs int
	for _, j := range queue.jobs {
		if j.jobType == "track-metadata" {
			metaJobs++
		}
	}
	if metaJobs != 1 {
		t.Fatalf("expected one metadata job, got %d", metaJobs)
	}

	// Known track with a title: no second registration, no second job.
	if _, err := svc.Ingest(context.Background(), uuid.New(), "", "10.0.0.1", models.IngestEventRequest{
		TrackID: "dQw4w9WgXcQ", EventType: "start", CorrelationID: "event-def", Title: "Some Song",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tracks.inserted) != 1 {
		t.Fatalf("expected no re-registration")
	}
}
