package models

import (
	"time"
)

// ErrorLog keeps failures that never reach the user, such as a nudge that
// could not be shown on either channel
type ErrorLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	AppName   string    `json:"app_name,omitempty"`
	ErrorMsg  string    `gorm:"not null" json:"error_msg"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
