package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState holds the pagination cursor and last-attempt bookkeeping for one
// integration and entity type, so an interrupted sync resumes where it left off.
type SyncState struct {
	IntegrationID string         `gorm:"primaryKey;type:text"`
	EntityType    string         `gorm:"primaryKey;type:text"`
	Cursor        *string        `gorm:"type:text"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
