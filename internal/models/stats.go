package models

import (
	"time"

	"github.com/google/uuid"
)

type HourlyStat struct {
	UserID       uuid.UUID `json:"user_id"`
	Date         time.Time `json:"date"`
	Hour         int       `json:"hour"`
	TotalMinutes int64     `json:"total_minutes"`
	TotalTracks  int64     `json:"total_tracks"`
}

type DailyStat struct {
	UserID        uuid.UUID `json:"user_id"`
	Date          time.Time `json:"date"`
	TotalMinutes  int64     `json:"total_minutes"`
	TotalTracks   int64     `json:"total_tracks"`
	TotalEarnings int64     `json:"total_earnings"`
}

type GroupDailyStat struct {
	GroupID          uuid.UUID `json:"group_id"`
	Date             time.Time `json:"date"`
	TotalMinutes     int64     `json:"total_minutes"`
	TotalTracks      int64     `json:"total_tracks"`
	TotalUniqueUsers int64     `json:"total_unique_users"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type StatTotals struct {
	Minutes int64 `json:"minutes"`
	Tracks  int64 `json:"tracks"`
}

type StatsSummary struct {
	Today   StatTotals `json:"today"`
	Week    StatTotals `json:"week"`
	Month   StatTotals `json:"month"`
	AllTime StatTotals `json:"all_time"`
}

// StatsUpdate is published on Redis pub/sub after each closure so open
// dashboards refresh without polling.
type StatsUpdate struct {
	UserID        uuid.UUID `json:"user_id"`
	TrackID       string    `json:"track_id"`
	MinutesAdded  int64     `json:"minutes_added"`
	EarningsAdded int64     `json:"earnings_added"`
	ClosedAt      time.Time `json:"closed_at"`
}
