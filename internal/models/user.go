package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID  `json:"id"`
	Username        string     `json:"username"`
	DisplayName     string     `json:"display_name"`
	PasswordHash    string     `json:"-"`
	LevelID         int        `json:"level_id"`
	GroupID         *uuid.UUID `json:"group_id"`
	VirtualEarnings int64      `json:"virtual_earnings"`
	IsDeleted       bool       `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
	Group *Group `json:"group,omitempty"`
}
