package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	IntegrationStatusActive  = "active"
	IntegrationStatusWarning = "warning"
	IntegrationStatusError   = "error"
	IntegrationStatusUnknown = "unknown"
)

// Integration is one configured connection from the host application to an
// external CRM platform. The sync orchestrator and health monitor are the
// only writers of status, timestamps and stats; creation and deletion belong
// to the host application.
type Integration struct {
	ID                 string         `gorm:"primaryKey;type:text"`
	UserID             string         `gorm:"index;type:text;not null"`
	Platform           string         `gorm:"index;type:text;not null"`
	Status             string         `gorm:"index;type:text;not null;default:unknown"`
	StatusMessage      *string        `gorm:"type:text"`
	APIKeyEncrypted    string         `gorm:"type:text;not null"`
	SyncFrequency      string         `gorm:"type:text;not null;default:hourly"`
	DataTypes          datatypes.JSON `gorm:"type:jsonb"`
	Settings           datatypes.JSON `gorm:"type:jsonb"`
	LastSyncAt         *time.Time     `gorm:"type:timestamptz"`
	NextSyncAt         *time.Time     `gorm:"index;type:timestamptz"`
	TotalSynced        int64          `gorm:"not null;default:0"`
	TotalErrors        int64          `gorm:"not null;default:0"`
	TotalWarnings      int64          `gorm:"not null;default:0"`
	LastSyncDurationMs int64          `gorm:"not null;default:0"`
	CreatedAt          time.Time      `gorm:"type:timestamptz;not null"`
	UpdatedAt          time.Time      `gorm:"type:timestamptz;not null"`
}

func (Integration) TableName() string {
	return "integrations"
}

// IntegrationSettings is the decoded shape of Integration.Settings.
type IntegrationSettings struct {
	BatchSize          int    `json:"batch_size"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	ConflictResolution string `json:"conflict_resolution"`
}
