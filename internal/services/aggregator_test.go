package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"odo-backend/internal/models"
)

type fakeStatsStore struct {
	hourlyCalls []hourlyCall
	dailyCalls  []dailyCall
	groupCalls  []groupCall
	hourlyErr   error
	dailyErr    error
	groupErr    error
}

type hourlyCall struct {
	userID  uuid.UUID
	date    string
	hour    int
	minutes int64
}

type dailyCall struct {
	userID   uuid.UUID
	date     string
	minutes  int64
	earnings int64
}

type groupCall struct {
	groupID     uuid.UUID
	date        string
	minutes     int64
	uniqueDelta int64
}

func (f *fakeStatsStore) UpsertHourly(ctx context.Context, userID uuid.UUID, date string, hour int, minutes int64) error {
	f.hourlyCalls = append(f.hourlyCalls, hourlyCall{userID, date, hour, minutes})
	return f.hourlyErr
}

func (f *fakeStatsStore) UpsertDaily(ctx context.Context, userID uuid.UUID, date string, minutes, earnings int64) error {
	f.dailyCalls = append(f.dailyCalls, dailyCall{userID, date, minutes, earnings})
	return f.dailyErr
}

func (f *fakeStatsStore) UpsertGroupDaily(ctx context.Context, groupID uuid.UUID, date string, minutes, uniqueDelta int64) error {
	f.groupCalls = append(f.groupCalls, groupCall{groupID, date, minutes, uniqueDelta})
	return f.groupErr
}

type fakeGroupResolver struct {
	groupID *uuid.UUID
	err     error
}

func (f *fakeGroupResolver) GroupIDForUser(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	return f.groupID, f.err
}

// fakeClosureResolver mimics the real store's semantics: first-closure is a
// property of the record id, independent of when the question is asked.
type fakeClosureResolver struct {
	firstRecordID uuid.UUID
	err           error
}

func (f *fakeClosureResolver) FirstClosureOfDay(ctx context.Context, userID uuid.UUID, recordID uuid.UUID, date string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return recordID == f.firstRecordID, nil
}

type fakeQueue struct {
	jobs    []queuedJob
	err     error
	updates []models.StatsUpdate
}

type queuedJob struct {
	jobType string
	payload interface{}
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, queuedJob{jobType, payload})
	return nil
}

func (f *fakeQueue) PublishStatsUpdate(ctx context.Context, update models.StatsUpdate) error {
	f.updates = append(f.updates, update)
	return nil
}

func closedRecord(userID uuid.UUID, actualSeconds int, endedAt time.Time) *models.ListeningRecord {
	reason := "finish"
	return &models.ListeningRecord{
		ID:                    uuid.New(),
		UserID:                userID,
		CorrelationID:         "event-abc",
		TrackID:               "dQw4w9WgXcQ",
		ActualDurationSeconds: &actualSeconds,
		CloseReason:           &reason,
		StartedAt:             endedAt.Add(-time.Duration(actualSeconds) * time.Second),
		EndedAt:               &endedAt,
	}
}

func TestEarningsFor(t *testing.T) {
	cases := []struct {
		seconds int
		want    int64
	}{
		{0, 1},
		{30, 1},
		{59, 1},
		{60, 1},
		{119, 1},
		{120, 2},
		{3600, 60},
	}
	for _, c := range cases {
		if got := EarningsFor(c.seconds); got != c.want {
			t.Fatalf("EarningsFor(%d) = %d, want %d", c.seconds, got, c.want)
		}
	}
}

func TestBucketOf(t *testing.T) {
	ts := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)
	date, hour := BucketOf(ts)
	if date != "2026-03-14" || hour != 23 {
		t.Fatalf("got (%s, %d)", date, hour)
	}

	// Non-UTC timestamps normalize to the UTC bucket.
	ts = time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("UTC-1", -3600))
	date, hour = BucketOf(ts)
	if date != "2026-03-15" || hour != 0 {
		t.Fatalf("expected the UTC bucket across the day boundary, got (%s, %d)", date, hour)
	}
}

func TestOnClosedBucketsDayBoundaryInUTC(t *testing.T) {
	stats := &fakeStatsStore{}
	queue := &fakeQueue{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, queue, queue)

	// 23:30 in UTC-1 is 00:30 UTC the next day; the daily bucket and the
	// queued group job must agree on that date.
	endedAt := time.Date(2026, 3, 14, 23, 30, 0, 0, time.FixedZone("UTC-1", -3600))
	rec := closedRecord(uuid.New(), 120, endedAt)

	agg.OnClosed(context.Background(), rec, 2)

	if stats.dailyCalls[0].date != "2026-03-15" {
		t.Fatalf("expected UTC date, got %q", stats.dailyCalls[0].date)
	}
	if stats.hourlyCalls[0].hour != 0 {
		t.Fatalf("expected UTC hour 0, got %d", stats.hourlyCalls[0].hour)
	}
	groupJob, ok := queue.jobs[0].payload.(models.GroupStatsJob)
	if !ok || groupJob.Date != "2026-03-15" {
		t.Fatalf("group job must carry the UTC date, got %+v", queue.jobs[0].payload)
	}
	if groupJob.RecordID != rec.ID {
		t.Fatalf("group job must carry the closed record id")
	}
}

func TestOnClosedUpdatesHourlyAndDaily(t *testing.T) {
	stats := &fakeStatsStore{}
	queue := &fakeQueue{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, queue, queue)

	userID := uuid.New()
	endedAt := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	rec := closedRecord(userID, 300, endedAt)

	agg.OnClosed(context.Background(), rec, EarningsFor(300))

	if len(stats.hourlyCalls) != 1 {
		t.Fatalf("expected one hourly upsert, got %d", len(stats.hourlyCalls))
	}
	h := stats.hourlyCalls[0]
	if h.date != "2026-03-14" || h.hour != 15 || h.minutes != 5 {
		t.Fatalf("unexpected hourly call: %+v", h)
	}

	if len(stats.dailyCalls) != 1 {
		t.Fatalf("expected one daily upsert, got %d", len(stats.dailyCalls))
	}
	d := stats.dailyCalls[0]
	if d.minutes != 5 || d.earnings != 5 {
		t.Fatalf("unexpected daily call: %+v", d)
	}
}

func TestOnClosedQueuesSideEffects(t *testing.T) {
	stats := &fakeStatsStore{}
	queue := &fakeQueue{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, queue, queue)

	rec := closedRecord(uuid.New(), 180, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	agg.OnClosed(context.Background(), rec, 3)

	if len(queue.jobs) != 2 {
		t.Fatalf("expected group-stats and earnings-mirror jobs, got %d", len(queue.jobs))
	}
	if queue.jobs[0].jobType != "group-stats" || queue.jobs[1].jobType != "earnings-mirror" {
		t.Fatalf("unexpected job types: %+v", queue.jobs)
	}
	if len(queue.updates) != 1 {
		t.Fatalf("expected a stats update publish")
	}
	if queue.updates[0].MinutesAdded != 3 || queue.updates[0].EarningsAdded != 3 {
		t.Fatalf("unexpected stats update: %+v", queue.updates[0])
	}
}

func TestOnClosedToleratesAggregateFailures(t *testing.T) {
	stats := &fakeStatsStore{hourlyErr: errors.New("boom"), dailyErr: errors.New("boom")}
	queue := &fakeQueue{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, queue, queue)

	rec := closedRecord(uuid.New(), 60, time.Now())
	// Must not panic or abort: closures are final even when counters lag.
	agg.OnClosed(context.Background(), rec, 1)

	if len(queue.jobs) != 2 {
		t.Fatalf("queued side effects must survive counter failures, got %d jobs", len(queue.jobs))
	}
}

func TestOnClosedIgnoresOpenRecord(t *testing.T) {
	stats := &fakeStatsStore{}
	queue := &fakeQueue{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, queue, queue)

	agg.OnClosed(context.Background(), &models.ListeningRecord{ID: uuid.New(), UserID: uuid.New()}, 1)

	if len(stats.hourlyCalls) != 0 || len(stats.dailyCalls) != 0 || len(queue.jobs) != 0 {
		t.Fatalf("open records must not reach the aggregates")
	}
}

func TestApplyGroupContributionFirstClosureOfDay(t *testing.T) {
	groupID := uuid.New()
	recordID := uuid.New()
	stats := &fakeStatsStore{}
	agg := NewAggregator(stats, &fakeGroupResolver{groupID: &groupID}, &fakeClosureResolver{firstRecordID: recordID}, &fakeQueue{}, nil)

	job := models.GroupStatsJob{UserID: uuid.New(), RecordID: recordID, Minutes: 4, Date: "2026-03-14"}
	if err := agg.ApplyGroupContribution(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats.groupCalls) != 1 {
		t.Fatalf("expected one group upsert")
	}
	g := stats.groupCalls[0]
	if g.groupID != groupID || g.minutes != 4 || g.uniqueDelta != 1 {
		t.Fatalf("unexpected group call: %+v", g)
	}
}

func TestApplyGroupContributionLaterClosureAddsNoUniqueUser(t *testing.T) {
	groupID := uuid.New()
	stats := &fakeStatsStore{}
	agg := NewAggregator(stats, &fakeGroupResolver{groupID: &groupID}, &fakeClosureResolver{firstRecordID: uuid.New()}, &fakeQueue{}, nil)

	job := models.GroupStatsJob{UserID: uuid.New(), RecordID: uuid.New(), Minutes: 2, Date: "2026-03-14"}
	if err := agg.ApplyGroupContribution(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.groupCalls[0].uniqueDelta != 0 {
		t.Fatalf("expected zero unique delta for a repeat closure")
	}
}

func TestApplyGroupContributionTwoQuickClosuresCountUserOnce(t *testing.T) {
	// Both closures commit before the worker drains either job, so by the
	// time the jobs run the user already has two closed records on the date.
	// The decision is keyed to the record id, not the drain moment, so the
	// unique-user increment must land exactly once.
	groupID := uuid.New()
	userID := uuid.New()
	firstRecord := uuid.New()
	secondRecord := uuid.New()

	stats := &fakeStatsStore{}
	agg := NewAggregator(stats, &fakeGroupResolver{groupID: &groupID}, &fakeClosureResolver{firstRecordID: firstRecord}, &fakeQueue{}, nil)

	jobs := []models.GroupStatsJob{
		{UserID: userID, RecordID: firstRecord, Minutes: 3, Date: "2026-03-14"},
		{UserID: userID, RecordID: secondRecord, Minutes: 5, Date: "2026-03-14"},
	}
	for _, job := range jobs {
		if err := agg.ApplyGroupContribution(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(stats.groupCalls) != 2 {
		t.Fatalf("expected both rollups applied, got %d", len(stats.groupCalls))
	}
	var uniqueTotal int64
	for _, g := range stats.groupCalls {
		uniqueTotal += g.uniqueDelta
	}
	if uniqueTotal != 1 {
		t.Fatalf("unique-user increments sum to %d, want exactly 1", uniqueTotal)
	}
}

func TestApplyGroupContributionSkipsGrouplessUser(t *testing.T) {
	stats := &fakeStatsStore{}
	agg := NewAggregator(stats, &fakeGroupResolver{}, &fakeClosureResolver{}, &fakeQueue{}, nil)

	job := models.GroupStatsJob{UserID: uuid.New(), Minutes: 2, Date: "2026-03-14"}
	if err := agg.ApplyGroupContribution(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.groupCalls) != 0 {
		t.Fatalf("groupless users contribute nothing")
	}
}
