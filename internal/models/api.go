package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Job is a unit of fire-and-forget background work pushed onto the Redis
// queues and drained by the worker pool.
type Job struct {
	ID      uuid.UUID       `json:"id"`
	Type    string          `json:"type"` // "group-stats" | "earnings-mirror" | "track-metadata"
	Payload json.RawMessage `json:"payload"`
}

type GroupStatsJob struct {
	UserID   uuid.UUID `json:"user_id"`
	RecordID uuid.UUID `json:"record_id"`
	Minutes  int64     `json:"minutes"`
	Date     string    `json:"date"` // YYYY-MM-DD
}

type EarningsMirrorJob struct {
	UserID   uuid.UUID `json:"user_id"`
	Earnings int64     `json:"earnings"`
}

type TrackMetadataJob struct {
	TrackID string `json:"track_id"`
}

// WebSocket message envelope
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// API Error response
type APIError struct {
	Code          string            `json:"code"`
	Message       string            `json:"message"`
	Fields        map[string]string `json:"fields,omitempty"`
	ConflictingIP *bool             `json:"conflicting_ip,omitempty"`
	RequestID     string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
