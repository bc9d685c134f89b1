package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed vocabulary of playback events. Only start, finish
// and skip drive the listening-record state machine; the rest are recorded
// for telemetry and audit.
type EventType string

const (
	EventStart          EventType = "start"
	EventPause          EventType = "pause"
	EventResume         EventType = "resume"
	EventFinish         EventType = "finish"
	EventSkip           EventType = "skip"
	EventSeek           EventType = "seek"
	EventClose          EventType = "close"
	EventSessionExpired EventType = "session_expired"
	EventUpdate         EventType = "update"
	EventTimeout        EventType = "timeout"
)

func (t EventType) Valid() bool {
	switch t {
	case EventStart, EventPause, EventResume, EventFinish, EventSkip,
		EventSeek, EventClose, EventSessionExpired, EventUpdate, EventTimeout:
		return true
	}
	return false
}

// Closes reports whether the event type closes an open listening record.
func (t EventType) Closes() bool {
	return t == EventFinish || t == EventSkip
}

// PlaybackEvent is a single client-reported event. Rows are write-once.
type PlaybackEvent struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	SessionID       string     `json:"session_id,omitempty"`
	CorrelationID   string     `json:"correlation_id,omitempty"`
	TrackID         string     `json:"track_id"`
	PlaylistID      *string    `json:"playlist_id,omitempty"`
	EventType       EventType  `json:"event_type"`
	PositionSeconds int        `json:"position_seconds"`
	DurationSeconds int        `json:"duration_seconds"`
	ClientTimestamp *time.Time `json:"client_timestamp,omitempty"`
	IPAddress       string     `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListeningRecord correlates a start event with its eventual finish/skip.
// Open until EndedAt is set; a record left open never reaches the aggregates.
type ListeningRecord struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 uuid.UUID  `json:"user_id"`
	SessionID              string     `json:"session_id,omitempty"`
	CorrelationID          string     `json:"correlation_id"`
	TrackID                string     `json:"track_id"`
	PlaylistID             *string    `json:"playlist_id,omitempty"`
	NominalDurationSeconds int        `json:"nominal_duration_seconds"`
	ActualDurationSeconds  *int       `json:"actual_duration_seconds,omitempty"`
	CloseReason            *string    `json:"close_reason,omitempty"`
	StartedAt              time.Time  `json:"started_at"`
	EndedAt                *time.Time `json:"ended_at,omitempty"`
}

func (r *ListeningRecord) Open() bool { return r.EndedAt == nil }

type IngestEventRequest struct {
	TrackID         string  `json:"track_id"`
	PlaylistID      *string `json:"playlist_id,omitempty"`
	EventType       string  `json:"event_type"`
	Position        int     `json:"position"`
	Duration        int     `json:"duration"`
	CorrelationID   string  `json:"correlation_id,omitempty"`
	ClientTimestamp int64   `json:"client_timestamp,omitempty"`
	Title           string  `json:"title,omitempty"`
	Artist          string  `json:"artist,omitempty"`
}

type IngestEventResponse struct {
	Accepted          bool       `json:"accepted"`
	EventID           uuid.UUID  `json:"event_id"`
	ListeningRecordID *uuid.UUID `json:"listening_record_id,omitempty"`
	Earnings          int64      `json:"earnings,omitempty"`
}
