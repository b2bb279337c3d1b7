package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crmsync/internal/models"
)

// RollingSyncStats is the windowed view the health monitor scores from.
type RollingSyncStats struct {
	RecentCount   int64 // completed or failed syncs in the 7d window
	Failed24h     int64
	LastSuccessAt *time.Time
}

// Store is the persistence surface of the sync subsystem. Integration rows
// are created and destroyed by the host application; this interface only
// mutates the fields the orchestrator and health monitor own.
type Store interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	GetIntegration(ctx context.Context, id string) (*models.Integration, error)
	ListActiveIntegrations(ctx context.Context) ([]models.Integration, error)
	ListDueIntegrations(ctx context.Context, now time.Time) ([]models.Integration, error)
	ListIntegrations(ctx context.Context) ([]models.Integration, error)
	UpdateIntegrationStatus(ctx context.Context, id, status string, message *string) error
	UpdateIntegrationSyncOutcome(ctx context.Context, id string, outcome SyncOutcome) error

	InsertSyncLog(ctx context.Context, item *models.SyncLog) error
	CompleteSyncLog(ctx context.Context, id, status string, completedAt time.Time, errMsg, errType *string, stats datatypes.JSON) error
	RollingSyncStats(ctx context.Context, integrationID string, now time.Time) (RollingSyncStats, error)

	UpsertContactsTx(ctx context.Context, tx *gorm.DB, items []models.Contact) error
	UpsertCompaniesTx(ctx context.Context, tx *gorm.DB, items []models.Company) error
	UpsertDealsTx(ctx context.Context, tx *gorm.DB, items []models.Deal) error

	GetSyncState(ctx context.Context, integrationID, entityType string) (*models.SyncState, error)
	SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error
}

// SyncOutcome is the write-back after a full sync run.
type SyncOutcome struct {
	LastSyncAt time.Time
	NextSyncAt time.Time
	Synced     int64
	Errors     int64
	Warnings   int64
	DurationMs int64
}
