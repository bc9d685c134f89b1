package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeviceClass scopes the single-active-session rule: at most one extension
// session may be active per user, web sessions coexist freely.
type DeviceClass string

const (
	DeviceExtension DeviceClass = "extension"
	DeviceWeb       DeviceClass = "web"
)

func (d DeviceClass) Valid() bool {
	return d == DeviceExtension || d == DeviceWeb
}

type Session struct {
	SessionID    string          `json:"session_id"`
	UserID       uuid.UUID       `json:"user_id"`
	DeviceClass  DeviceClass     `json:"device_class"`
	IPAddress    string          `json:"ip_address"`
	Browser      string          `json:"browser"`
	OS           string          `json:"os"`
	DeviceInfo   json.RawMessage `json:"device_info"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActiveAt time.Time       `json:"last_active_at"`
	ExpiredAt    *time.Time      `json:"expired_at,omitempty"`
}

// LoginAudit rows are append-only and never read back by the engine.
type LoginAudit struct {
	UserID    uuid.UUID
	SessionID string
	IPAddress string
	UserAgent string
	Status    string // "success" | "logout" | "superseded"
}

type CreateSessionRequest struct {
	DeviceClass string          `json:"device_class"`
	DeviceInfo  json.RawMessage `json:"device_info"`
}
