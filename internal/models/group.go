package models

import (
	"time"

	"github.com/google/uuid"
)

type Group struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	DailyGoalMinutes   int       `json:"daily_goal_minutes"`
	MonthlyGoalMinutes int       `json:"monthly_goal_minutes"`
	DailyMaxMinutes    int       `json:"daily_max_minutes"`
	MonthlyMinMinutes  int       `json:"monthly_min_minutes"`
	CreatedAt          time.Time `json:"created_at"`
}
