package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crmsync/internal/models"
	"crmsync/internal/processor"
	"crmsync/internal/registry"
	"crmsync/internal/remote"
	"crmsync/internal/repository"
)

// maxConsecutivePageFailures bounds worst-case cost when the remote API is
// persistently broken: the same cursor is retried at most this many times
// before the entity type's sync is aborted.
const maxConsecutivePageFailures = 5

type SyncService struct {
	Store     repository.Store
	Registry  *registry.Registry
	Processor *processor.Processor
	Logger    *zap.Logger
}

type SyncOptions struct {
	PageLimit int
	MaxPages  int
	Resume    bool
}

// EntityResult is the outcome for one entity type within a run.
type EntityResult struct {
	SyncedCount  int    `json:"synced_count"`
	ErrorCount   int    `json:"error_count"`
	TotalFetched int    `json:"total_fetched"`
	Skipped      int    `json:"skipped"`
	Pages        int    `json:"pages"`
	Error        string `json:"error,omitempty"`
}

// SyncResult aggregates one full sync run across the integration's
// requested entity types.
type SyncResult struct {
	Success     bool                    `json:"success"`
	SyncedCount int                     `json:"synced_count"`
	ErrorCount  int                     `json:"error_count"`
	DurationMs  int64                   `json:"duration_ms"`
	Results     map[string]EntityResult `json:"results"`
}

// SyncIntegration runs one bounded sync of every entity type the integration
// requests. Entity types are attempted independently; one aborting does not
// cancel the others.
func (s *SyncService) SyncIntegration(ctx context.Context, integration *models.Integration, opts SyncOptions) (SyncResult, error) {
	start := time.Now().UTC()
	result := SyncResult{Results: map[string]EntityResult{}}

	client, err := s.Registry.Create(integration.Platform, clientConfig(integration))
	if err != nil {
		return result, err
	}

	logID := uuid.NewString()
	_ = s.Store.InsertSyncLog(ctx, &models.SyncLog{
		ID:            logID,
		IntegrationID: integration.ID,
		SyncType:      "full",
		Status:        models.SyncLogStatusRunning,
		StartedAt:     start,
	})

	dataTypes := requestedDataTypes(integration)
	failed := 0
	var firstErr *remote.ErrorInfo
	skippedTotal := 0
	for _, entityType := range dataTypes {
		entityResult, err := s.syncEntityType(ctx, client, integration, entityType, opts)
		if err != nil {
			info := remote.Classify(err)
			entityResult.Error = info.Message
			failed++
			if firstErr == nil {
				firstErr = info
			}
			s.log().Warn("entity sync failed",
				zap.String("integration_id", integration.ID),
				zap.String("entity_type", entityType),
				zap.String("error_type", string(info.Type)),
				zap.Error(err),
			)
			if info.Type == remote.ErrorTypeAuthentication {
				// Retrying the remaining entity types with the same bad
				// credential only burns rate-limit budget.
				msg := info.Message
				_ = s.Store.UpdateIntegrationStatus(ctx, integration.ID, models.IntegrationStatusError, &msg)
				result.Results[entityType] = entityResult
				for _, rest := range dataTypes {
					if _, done := result.Results[rest]; !done {
						failed++
						result.Results[rest] = EntityResult{Error: "skipped: authentication failed"}
					}
				}
				break
			}
		}
		result.Results[entityType] = entityResult
		result.SyncedCount += entityResult.SyncedCount
		result.ErrorCount += entityResult.ErrorCount
		skippedTotal += entityResult.Skipped
	}

	now := time.Now().UTC()
	result.DurationMs = now.Sub(start).Milliseconds()
	result.Success = failed == 0

	outcome := repository.SyncOutcome{
		LastSyncAt: now,
		NextSyncAt: NextSyncAt(integration.SyncFrequency, now),
		Synced:     int64(result.SyncedCount),
		Errors:     int64(result.ErrorCount),
		Warnings:   int64(skippedTotal),
		DurationMs: result.DurationMs,
	}
	if err := s.Store.UpdateIntegrationSyncOutcome(ctx, integration.ID, outcome); err != nil {
		s.log().Warn("sync outcome write failed", zap.String("integration_id", integration.ID), zap.Error(err))
	}

	logStatus := models.SyncLogStatusCompleted
	var errMsg, errType *string
	if failed == len(dataTypes) && len(dataTypes) > 0 {
		logStatus = models.SyncLogStatusFailed
	}
	if firstErr != nil {
		m := firstErr.Message
		t := string(firstErr.Type)
		errMsg, errType = &m, &t
	}
	_ = s.Store.CompleteSyncLog(ctx, logID, logStatus, now, errMsg, errType, statsJSON(result.Results))

	if firstErr != nil && !result.Success {
		return result, firstErr
	}
	return result, nil
}

// syncEntityType paginates one remote collection: fetch page, process batch,
// upsert, advance cursor. Per-record errors never stop pagination; page-level
// fetch errors retry the same cursor until the consecutive-failure cutoff.
func (s *SyncService) syncEntityType(ctx context.Context, client remote.PlatformClient, integration *models.Integration, entityType string, opts SyncOptions) (EntityResult, error) {
	limit := normalizePageLimit(opts.PageLimit, integration)
	maxPages := normalizeMaxPages(opts.MaxPages)
	result := EntityResult{}

	cursor := ""
	if opts.Resume {
		state, err := s.Store.GetSyncState(ctx, integration.ID, entityType)
		if err != nil {
			return result, err
		}
		if state != nil && state.Cursor != nil {
			cursor = *state.Cursor
		}
	}

	consecutiveFailures := 0
	for page := 0; page < maxPages; {
		pageData, err := client.ListPage(ctx, entityType, cursor, limit)
		if err != nil {
			info := remote.Classify(err)
			if info.Type == remote.ErrorTypeAuthentication {
				s.writeSyncError(ctx, integration.ID, entityType, info)
				return result, info
			}
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutivePageFailures {
				s.writeSyncError(ctx, integration.ID, entityType, info)
				return result, info
			}
			s.log().Warn("page fetch failed, will retry cursor",
				zap.String("integration_id", integration.ID),
				zap.String("entity_type", entityType),
				zap.Int("consecutive_failures", consecutiveFailures),
				zap.Error(err),
			)
			continue
		}
		consecutiveFailures = 0
		page++

		now := time.Now().UTC()
		batch := s.Processor.ProcessBatch(pageData.Records, entityType, integration.ID, client.Platform(), now)
		result.TotalFetched += len(pageData.Records)
		result.ErrorCount += len(batch.Errors)
		result.Skipped += batch.Skipped

		nextCursor := pageData.NextCursor
		err = s.Store.InTx(ctx, func(tx *gorm.DB) error {
			if err := s.Store.UpsertContactsTx(ctx, tx, batch.Contacts); err != nil {
				return err
			}
			if err := s.Store.UpsertCompaniesTx(ctx, tx, batch.Companies); err != nil {
				return err
			}
			if err := s.Store.UpsertDealsTx(ctx, tx, batch.Deals); err != nil {
				return err
			}
			state := &models.SyncState{
				IntegrationID: integration.ID,
				EntityType:    entityType,
				Cursor:        strPtr(nextCursor),
				LastAttemptAt: &now,
				LastSuccessAt: &now,
				LastError:     nil,
				StatsJSON: mustJSON(map[string]int{
					"fetched": len(pageData.Records),
					"errors":  len(batch.Errors),
					"skipped": batch.Skipped,
				}),
			}
			return s.Store.SaveSyncStateTx(ctx, tx, state)
		})
		if err != nil {
			s.writeSyncError(ctx, integration.ID, entityType, err)
			return result, err
		}

		result.SyncedCount += len(batch.Contacts) + len(batch.Companies) + len(batch.Deals)
		result.Pages++

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return result, nil
}

func (s *SyncService) writeSyncError(ctx context.Context, integrationID, entityType string, cause error) {
	now := time.Now().UTC()
	_ = s.Store.InTx(ctx, func(tx *gorm.DB) error {
		state := &models.SyncState{
			IntegrationID: integrationID,
			EntityType:    entityType,
			LastAttemptAt: &now,
			LastError:     strPtr(cause.Error()),
		}
		return s.Store.SaveSyncStateTx(ctx, tx, state)
	})
}

func (s *SyncService) log() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func clientConfig(integration *models.Integration) map[string]string {
	config := map[string]string{
		"api_key_encrypted": integration.APIKeyEncrypted,
	}
	var settings map[string]any
	if len(integration.Settings) > 0 {
		if err := json.Unmarshal(integration.Settings, &settings); err == nil {
			if base, ok := settings["base_url"].(string); ok {
				config["base_url"] = base
			}
		}
	}
	return config
}

func requestedDataTypes(integration *models.Integration) []string {
	var requested []string
	if len(integration.DataTypes) > 0 {
		_ = json.Unmarshal(integration.DataTypes, &requested)
	}
	if len(requested) == 0 {
		return []string{models.EntityTypeContacts, models.EntityTypeCompanies, models.EntityTypeDeals}
	}
	return requested
}

func normalizePageLimit(limit int, integration *models.Integration) int {
	if limit > 0 {
		return limit
	}
	if len(integration.Settings) > 0 {
		var settings models.IntegrationSettings
		if err := json.Unmarshal(integration.Settings, &settings); err == nil && settings.BatchSize > 0 {
			return settings.BatchSize
		}
	}
	return 100
}

func normalizeMaxPages(maxPages int) int {
	if maxPages <= 0 {
		return 50
	}
	return maxPages
}

func statsJSON(results map[string]EntityResult) datatypes.JSON {
	payload, err := json.Marshal(results)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}

func mustJSON(v any) datatypes.JSON {
	payload, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(payload)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
