package service

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crmsync/internal/models"
	"crmsync/internal/repository"
)

// stubStore is a test-only in-memory implementation of repository.Store.
type stubStore struct {
	integrations []models.Integration
	contacts     []models.Contact
	companies    []models.Company
	deals        []models.Deal
	syncLogs     []models.SyncLog
	syncStates   map[string]models.SyncState
	outcomes     map[string]repository.SyncOutcome
	statuses     map[string]string
	stats        map[string]repository.RollingSyncStats

	listErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		syncStates: map[string]models.SyncState{},
		outcomes:   map[string]repository.SyncOutcome{},
		statuses:   map[string]string{},
		stats:      map[string]repository.RollingSyncStats{},
	}
}

func stateKey(integrationID, entityType string) string {
	return integrationID + "/" + entityType
}

func (s *stubStore) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubStore) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	for i := range s.integrations {
		if s.integrations[i].ID == id {
			return &s.integrations[i], nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListActiveIntegrations(ctx context.Context) ([]models.Integration, error) {
	return s.integrations, s.listErr
}

func (s *stubStore) ListDueIntegrations(ctx context.Context, now time.Time) ([]models.Integration, error) {
	return s.integrations, s.listErr
}

func (s *stubStore) ListIntegrations(ctx context.Context) ([]models.Integration, error) {
	return s.integrations, s.listErr
}

func (s *stubStore) UpdateIntegrationStatus(ctx context.Context, id, status string, message *string) error {
	s.statuses[id] = status
	return nil
}

func (s *stubStore) UpdateIntegrationSyncOutcome(ctx context.Context, id string, outcome repository.SyncOutcome) error {
	s.outcomes[id] = outcome
	return nil
}

func (s *stubStore) InsertSyncLog(ctx context.Context, item *models.SyncLog) error {
	s.syncLogs = append(s.syncLogs, *item)
	return nil
}

func (s *stubStore) CompleteSyncLog(ctx context.Context, id, status string, completedAt time.Time, errMsg, errType *string, stats datatypes.JSON) error {
	for i := range s.syncLogs {
		if s.syncLogs[i].ID == id {
			s.syncLogs[i].Status = status
			s.syncLogs[i].CompletedAt = &completedAt
			s.syncLogs[i].ErrorMessage = errMsg
			s.syncLogs[i].ErrorType = errType
			s.syncLogs[i].StatsJSON = stats
		}
	}
	return nil
}

func (s *stubStore) RollingSyncStats(ctx context.Context, integrationID string, now time.Time) (repository.RollingSyncStats, error) {
	return s.stats[integrationID], nil
}

func (s *stubStore) UpsertContactsTx(ctx context.Context, tx *gorm.DB, items []models.Contact) error {
	s.contacts = append(s.contacts, items...)
	return nil
}

func (s *stubStore) UpsertCompaniesTx(ctx context.Context, tx *gorm.DB, items []models.Company) error {
	s.companies = append(s.companies, items...)
	return nil
}

func (s *stubStore) UpsertDealsTx(ctx context.Context, tx *gorm.DB, items []models.Deal) error {
	s.deals = append(s.deals, items...)
	return nil
}

func (s *stubStore) GetSyncState(ctx context.Context, integrationID, entityType string) (*models.SyncState, error) {
	if state, ok := s.syncStates[stateKey(integrationID, entityType)]; ok {
		return &state, nil
	}
	return nil, nil
}

func (s *stubStore) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	s.syncStates[stateKey(state.IntegrationID, state.EntityType)] = *state
	return nil
}
