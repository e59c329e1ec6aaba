package models

import "time"

// SystemLog is an audit record for installation events.
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"` // info, warning, error
	Action    string    `gorm:"size:100;index" json:"action"`
	Stage     string    `gorm:"size:50" json:"stage"`
	Source    string    `gorm:"size:20" json:"source"` // http, cli
	Message   string    `gorm:"type:text" json:"message"`
	UserID    *uint     `json:"user_id"`
	IP        string    `gorm:"size:50" json:"ip"`
	Extra     string    `gorm:"type:text" json:"extra"` // JSON extra data
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (SystemLog) TableName() string { return "system_logs" }
