// Package hubspot is the HubSpot CRM v3 client. Every transport or HTTP
// failure leaves this package already classified as a remote.ErrorInfo.
package hubspot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crmsync/internal/remote"
)

const PlatformName = "hubspot"

// CredentialFunc yields the plaintext API token for the current call. The
// token is fetched per request so decrypted credentials are never held
// beyond the call that needs them.
type CredentialFunc func() (string, error)

type Client struct {
	host       string
	httpClient *http.Client
	requester  *remote.Requester
	credential CredentialFunc
}

// APIError is the boundary error for non-2xx HubSpot responses.
type APIError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot API error (%d): %s", e.Status, e.Body)
}

func (e *APIError) HTTPStatus() int { return e.Status }

func (e *APIError) RetryAfterHint() (time.Duration, bool) {
	if e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

func (e *APIError) PlatformTag() string { return PlatformName }

func NewClient(httpClient *http.Client, host string, requester *remote.Requester, credential CredentialFunc) *Client {
	if host == "" {
		host = "https://api.hubapi.com"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
		requester:  requester,
		credential: credential,
	}
}

func (c *Client) Platform() string { return PlatformName }

var objectPaths = map[string]string{
	"contacts":  "/crm/v3/objects/contacts",
	"companies": "/crm/v3/objects/companies",
	"deals":     "/crm/v3/objects/deals",
}

var objectProperties = map[string]string{
	"contacts":  "email,firstname,lastname,phone,company",
	"companies": "name,domain,industry,phone",
	"deals":     "dealname,amount,dealstage,closedate",
}

// ListPage fetches one page of a CRM object collection.
func (c *Client) ListPage(ctx context.Context, entityType, cursor string, limit int) (*remote.Page, error) {
	path, ok := objectPaths[entityType]
	if !ok {
		return nil, &remote.ErrorInfo{
			Type:       remote.ErrorTypeValidation,
			Message:    fmt.Sprintf("unsupported entity type: %s", entityType),
			StatusCode: http.StatusBadRequest,
		}
	}
	query := url.Values{}
	if limit <= 0 {
		limit = 100
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("properties", objectProperties[entityType])
	if cursor != "" {
		query.Set("after", cursor)
	}

	body, err := c.requester.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.doRequest(ctx, path, query)
	})
	if err != nil {
		return nil, remote.Classify(err)
	}
	return parsePage(body)
}

// TestConnection probes the account details endpoint and reports reachability.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.requester.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.doRequest(ctx, "/account-info/v3/details", nil)
	})
	if err != nil {
		return remote.Classify(err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	token, err := c.credential()
	if err != nil {
		return nil, fmt.Errorf("credential unavailable: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			Status:     resp.StatusCode,
			Body:       truncate(string(body), 512),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
