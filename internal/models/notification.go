package models

import (
	"time"
)

// Notification sources
const (
	SourceWatcher = "watcher"
	SourceAPI     = "api"
)

// NotificationLog is one dispatched notification and, once known, the
// user's answer to it
type NotificationLog struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	AppName       string     `gorm:"index" json:"app_name,omitempty"`
	Title         string     `gorm:"not null" json:"title"`
	Body          string     `json:"body"`
	Source        string     `gorm:"not null;index" json:"source"`
	Channel       string     `gorm:"not null" json:"channel"`
	Outcome       string     `json:"outcome,omitempty"` // empty while unanswered
	ResponseIndex *int       `json:"response_index,omitempty"`
	DispatchedAt  time.Time  `gorm:"not null;index" json:"dispatched_at"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppSummary counts the nudges sent for one application
type AppSummary struct {
	AppName      string `json:"app_name"`
	NudgeCount   int    `json:"nudge_count"`
	OkayCount    int    `json:"okay_count"`
	CancelCount  int    `json:"cancel_count"`
	PendingCount int    `json:"pending_count"`
}

type Report struct {
	Since       time.Time    `json:"since"`
	Apps        []AppSummary `json:"apps"`
	TotalNudges int          `json:"total_nudges"`
	OkayRate    float64      `json:"okay_rate"` // share of answered nudges accepted, 0..1
	GeneratedAt time.Time    `json:"generated_at"`
}
