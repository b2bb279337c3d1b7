package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SyncLogStatusRunning   = "running"
	SyncLogStatusCompleted = "completed"
	SyncLogStatusFailed    = "failed"
)

// SyncLog records one sync attempt. Rows are append-only; after completion
// only CompletedAt and the terminal status/error fields are filled in.
type SyncLog struct {
	ID            string         `gorm:"primaryKey;type:text"`
	IntegrationID string         `gorm:"index;type:text;not null"`
	SyncType      string         `gorm:"type:text;not null"`
	Status        string         `gorm:"index;type:text;not null"`
	StartedAt     time.Time      `gorm:"index;type:timestamptz;not null"`
	CompletedAt   *time.Time     `gorm:"type:timestamptz"`
	ErrorMessage  *string        `gorm:"type:text"`
	ErrorType     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}
