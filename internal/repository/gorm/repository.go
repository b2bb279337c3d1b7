package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crmsync/internal/models"
	"crmsync/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- integrations -----------------------------------------------------------

func (s *Store) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Integration
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListActiveIntegrations(ctx context.Context) ([]models.Integration, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Integration
	err := s.db.WithContext(ctx).
		Where("status <> ?", models.IntegrationStatusError).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListDueIntegrations(ctx context.Context, now time.Time) ([]models.Integration, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var items []models.Integration
	err := s.db.WithContext(ctx).
		Where("status <> ?", models.IntegrationStatusError).
		Where("next_sync_at IS NULL OR next_sync_at <= ?", now).
		Order("next_sync_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListIntegrations(ctx context.Context) ([]models.Integration, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Integration
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateIntegrationStatus(ctx context.Context, id, status string, message *string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         status,
			"status_message": message,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (s *Store) UpdateIntegrationSyncOutcome(ctx context.Context, id string, outcome repository.SyncOutcome) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_sync_at":          outcome.LastSyncAt,
			"next_sync_at":          outcome.NextSyncAt,
			"total_synced":          gorm.Expr("total_synced + ?", outcome.Synced),
			"total_errors":          gorm.Expr("total_errors + ?", outcome.Errors),
			"total_warnings":        gorm.Expr("total_warnings + ?", outcome.Warnings),
			"last_sync_duration_ms": outcome.DurationMs,
			"updated_at":            time.Now().UTC(),
		}).Error
}

// --- sync logs --------------------------------------------------------------

func (s *Store) InsertSyncLog(ctx context.Context, item *models.SyncLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) CompleteSyncLog(ctx context.Context, id, status string, completedAt time.Time, errMsg, errType *string, stats datatypes.JSON) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"completed_at":  completedAt,
			"error_message": errMsg,
			"error_type":    errType,
			"stats_json":    stats,
		}).Error
}

func (s *Store) RollingSyncStats(ctx context.Context, integrationID string, now time.Time) (repository.RollingSyncStats, error) {
	stats := repository.RollingSyncStats{}
	if s == nil || s.db == nil {
		return stats, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	since7d := now.Add(-7 * 24 * time.Hour)
	since24h := now.Add(-24 * time.Hour)

	err := s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("integration_id = ?", integrationID).
		Where("started_at >= ?", since7d).
		Where("status <> ?", models.SyncLogStatusRunning).
		Count(&stats.RecentCount).Error
	if err != nil {
		return stats, err
	}

	err = s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("integration_id = ?", integrationID).
		Where("started_at >= ?", since24h).
		Where("status = ?", models.SyncLogStatusFailed).
		Count(&stats.Failed24h).Error
	if err != nil {
		return stats, err
	}

	var last models.SyncLog
	err = s.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Where("status = ?", models.SyncLogStatusCompleted).
		Order("completed_at desc").
		First(&last).Error
	if err == nil {
		stats.LastSuccessAt = last.CompletedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, err
	}
	return stats, nil
}

// --- normalized entities ----------------------------------------------------

var entityConflictKey = []clause.Column{{Name: "integration_id"}, {Name: "external_id"}}

func (s *Store) UpsertContactsTx(ctx context.Context, tx *gorm.DB, items []models.Contact) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: entityConflictKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "first_name", "last_name", "phone", "company",
			"remote_created", "remote_modified", "last_seen_at", "raw_json",
		}),
	}).Create(&items).Error
}

func (s *Store) UpsertCompaniesTx(ctx context.Context, tx *gorm.DB, items []models.Company) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: entityConflictKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "domain", "industry", "phone",
			"remote_created", "remote_modified", "last_seen_at", "raw_json",
		}),
	}).Create(&items).Error
}

func (s *Store) UpsertDealsTx(ctx context.Context, tx *gorm.DB, items []models.Deal) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: entityConflictKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "amount", "stage", "close_date",
			"remote_created", "remote_modified", "last_seen_at", "raw_json",
		}),
	}).Create(&items).Error
}

// --- cursor state -----------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, integrationID, entityType string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).
		First(&state, "integration_id = ? AND entity_type = ?", integrationID, entityType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	if tx == nil || state == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "integration_id"}, {Name: "entity_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor", "last_success_at", "last_attempt_at", "last_error", "stats_json",
		}),
	}).Create(state).Error
}
