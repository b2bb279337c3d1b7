package remote

import (
	"context"
	"encoding/json"
)

// Record is one raw remote object as returned by a platform client: external
// id, flat property bag, remote timestamps, and the untouched payload bytes.
type Record struct {
	ExternalID string
	Properties map[string]string
	CreatedAt  string
	UpdatedAt  string
	Raw        json.RawMessage
}

// Page is one page of a cursor-paginated remote collection. An empty
// NextCursor means the collection is exhausted.
type Page struct {
	Records    []Record
	NextCursor string
}

// PlatformClient is the surface the orchestrator and health monitor need from
// a platform-specific client.
type PlatformClient interface {
	// ListPage fetches one page of the named entity collection starting at
	// cursor ("" for the first page).
	ListPage(ctx context.Context, entityType, cursor string, limit int) (*Page, error)
	// TestConnection is a lightweight connectivity probe, not a sync.
	TestConnection(ctx context.Context) error
	Platform() string
}
