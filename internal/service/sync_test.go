package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"

	"crmsync/internal/crypto"
	"crmsync/internal/models"
	"crmsync/internal/processor"
	"crmsync/internal/registry"
	"crmsync/internal/remote"
)

const testAESKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func testRegistry(t *testing.T) (*registry.Registry, *crypto.AESDecryptor) {
	t.Helper()
	dec, err := crypto.NewAESDecryptor(testAESKey)
	if err != nil {
		t.Fatalf("decryptor: %v", err)
	}
	requester := remote.NewRequester(remote.RetryPolicy{
		MaxRetries:     0,
		MinInterval:    time.Millisecond,
		NetworkBackoff: time.Millisecond,
	}, nil)
	reg := registry.New(registry.Deps{
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Requester:  requester,
		Decryptor:  dec,
	})
	return reg, dec
}

func testIntegration(t *testing.T, dec *crypto.AESDecryptor, baseURL string, dataTypes []string) *models.Integration {
	t.Helper()
	blob, err := dec.Encrypt("pat-test-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	types, _ := json.Marshal(dataTypes)
	settings, _ := json.Marshal(map[string]any{"base_url": baseURL, "batch_size": 100})
	return &models.Integration{
		ID:              "int-1",
		UserID:          "user-1",
		Platform:        "hubspot",
		Status:          models.IntegrationStatusActive,
		APIKeyEncrypted: blob,
		SyncFrequency:   "hourly",
		DataTypes:       datatypes.JSON(types),
		Settings:        datatypes.JSON(settings),
	}
}

func newSyncService(store *stubStore, reg *registry.Registry) *SyncService {
	return &SyncService{
		Store:     store,
		Registry:  reg,
		Processor: &processor.Processor{},
	}
}

func TestSyncIntegration_TwoPagesWithSilentDrop(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Query().Get("after") == "" {
			w.Write([]byte(`{
				"results": [
					{"id":"1","properties":{"email":"a@x.co"}},
					{"id":"2","properties":{"phone":"555"}},
					{"id":"3","properties":{"firstname":"Cy"}}
				],
				"paging": {"next": {"after": "p2"}}
			}`))
			return
		}
		w.Write([]byte(`{"results":[{"id":"4","properties":{"email":"d@x.co"}}]}`))
	}))
	defer srv.Close()

	reg, dec := testRegistry(t)
	store := newStubStore()
	svc := newSyncService(store, reg)
	integration := testIntegration(t, dec, srv.URL, []string{"contacts"})

	result, err := svc.SyncIntegration(context.Background(), integration, SyncOptions{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !result.Success {
		t.Fatalf("success=false: %+v", result)
	}
	contacts := result.Results["contacts"]
	if contacts.TotalFetched != 4 {
		t.Fatalf("fetched=%d want 4", contacts.TotalFetched)
	}
	if contacts.SyncedCount != 3 || result.SyncedCount != 3 {
		t.Fatalf("synced=%d want 3", contacts.SyncedCount)
	}
	if contacts.Skipped != 1 {
		t.Fatalf("skipped=%d want 1", contacts.Skipped)
	}
	if contacts.ErrorCount != 0 || result.ErrorCount != 0 {
		t.Fatalf("errors=%d want 0", contacts.ErrorCount)
	}
	if contacts.Pages != 2 || atomic.LoadInt32(&requests) != 2 {
		t.Fatalf("pages=%d requests=%d want 2/2", contacts.Pages, requests)
	}
	if len(store.contacts) != 3 {
		t.Fatalf("persisted contacts=%d want 3", len(store.contacts))
	}

	outcome, ok := store.outcomes["int-1"]
	if !ok {
		t.Fatalf("sync outcome not written")
	}
	if got := outcome.NextSyncAt.Sub(outcome.LastSyncAt); got != time.Hour {
		t.Fatalf("next-last=%s want 1h for hourly", got)
	}
	if outcome.Warnings != 1 {
		t.Fatalf("warnings=%d want 1 (the skipped record)", outcome.Warnings)
	}

	if len(store.syncLogs) != 1 || store.syncLogs[0].Status != models.SyncLogStatusCompleted {
		t.Fatalf("sync log=%+v", store.syncLogs)
	}
}

func TestSyncIntegration_AuthFailureStopsRunAndFlagsIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reg, dec := testRegistry(t)
	store := newStubStore()
	svc := newSyncService(store, reg)
	integration := testIntegration(t, dec, srv.URL, []string{"contacts", "deals"})

	result, err := svc.SyncIntegration(context.Background(), integration, SyncOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	var info *remote.ErrorInfo
	if !errors.As(err, &info) || info.Type != remote.ErrorTypeAuthentication {
		t.Fatalf("err=%v", err)
	}
	if result.Success {
		t.Fatalf("success=true after auth failure")
	}
	if store.statuses["int-1"] != models.IntegrationStatusError {
		t.Fatalf("status=%q want error", store.statuses["int-1"])
	}
	deals := result.Results["deals"]
	if deals.Error == "" {
		t.Fatalf("remaining entity type should be marked skipped")
	}
	if len(store.syncLogs) != 1 || store.syncLogs[0].Status != models.SyncLogStatusFailed {
		t.Fatalf("sync log=%+v", store.syncLogs)
	}
}

func TestSyncIntegration_ConsecutivePageFailureCutoff(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg, dec := testRegistry(t)
	store := newStubStore()
	svc := newSyncService(store, reg)
	integration := testIntegration(t, dec, srv.URL, []string{"contacts"})

	_, err := svc.SyncIntegration(context.Background(), integration, SyncOptions{})
	var info *remote.ErrorInfo
	if !errors.As(err, &info) || info.Type != remote.ErrorTypeServer {
		t.Fatalf("err=%v want SERVER_ERROR", err)
	}
	if got := atomic.LoadInt32(&requests); got != maxConsecutivePageFailures {
		t.Fatalf("requests=%d want %d", got, maxConsecutivePageFailures)
	}
	state := store.syncStates[stateKey("int-1", "contacts")]
	if state.LastError == nil {
		t.Fatalf("terminal error not recorded in sync state")
	}
}

func TestSyncIntegration_OneEntityFailingDoesNotCancelOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/crm/v3/objects/deals" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"results":[{"id":"1","properties":{"email":"a@x.co"}}]}`))
	}))
	defer srv.Close()

	reg, dec := testRegistry(t)
	store := newStubStore()
	svc := newSyncService(store, reg)
	integration := testIntegration(t, dec, srv.URL, []string{"deals", "contacts"})

	result, err := svc.SyncIntegration(context.Background(), integration, SyncOptions{})
	if err == nil {
		t.Fatalf("expected aggregate error for the failed entity type")
	}
	if result.Results["contacts"].SyncedCount != 1 {
		t.Fatalf("contacts should have synced despite deals failing: %+v", result.Results)
	}
	if result.Results["deals"].Error == "" {
		t.Fatalf("deals failure not recorded")
	}
	if len(store.syncLogs) != 1 || store.syncLogs[0].Status != models.SyncLogStatusCompleted {
		t.Fatalf("partial failure should still complete the log: %+v", store.syncLogs)
	}
}

func TestSyncIntegration_ResumesFromStoredCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if after := r.URL.Query().Get("after"); after != "p9" {
			t.Errorf("after=%q want p9", after)
		}
		w.Write([]byte(`{"results":[{"id":"42","properties":{"email":"z@x.co"}}]}`))
	}))
	defer srv.Close()

	reg, dec := testRegistry(t)
	store := newStubStore()
	cursor := "p9"
	store.syncStates[stateKey("int-1", "contacts")] = models.SyncState{
		IntegrationID: "int-1",
		EntityType:    "contacts",
		Cursor:        &cursor,
	}
	svc := newSyncService(store, reg)
	integration := testIntegration(t, dec, srv.URL, []string{"contacts"})

	result, err := svc.SyncIntegration(context.Background(), integration, SyncOptions{Resume: true})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.SyncedCount != 1 {
		t.Fatalf("synced=%d want 1", result.SyncedCount)
	}
	state := store.syncStates[stateKey("int-1", "contacts")]
	if state.Cursor != nil {
		t.Fatalf("cursor=%v want cleared after final page", *state.Cursor)
	}
}

func TestSyncIntegration_UnsupportedPlatform(t *testing.T) {
	reg, dec := testRegistry(t)
	store := newStubStore()
	svc := newSyncService(store, reg)
	integration := testIntegration(t, dec, "http://127.0.0.1:0", []string{"contacts"})
	integration.Platform = "pipedrive"

	_, err := svc.SyncIntegration(context.Background(), integration, SyncOptions{})
	var unsupported *registry.UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err=%v", err)
	}
}
