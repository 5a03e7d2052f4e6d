// Package behavior supplies the user's interaction history from a
// PostHog-compatible analytics API and distills it into the summary the
// planner consumes. Missing data is a degraded-but-valid empty summary,
// never an error.
package behavior

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tailor/internal/logging"
)

// Client queries raw events over the analytics HogQL API.
type Client struct {
	apiKey      string
	baseURL     string
	projectID   string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// ClientConfig holds configuration for the analytics client.
type ClientConfig struct {
	APIKey    string
	BaseURL   string
	ProjectID string
	Timeout   time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey, projectID string) ClientConfig {
	return ClientConfig{
		APIKey:    apiKey,
		BaseURL:   "https://us.posthog.com",
		ProjectID: projectID,
		Timeout:   30 * time.Second,
	}
}

// NewClient creates an analytics client with default config.
func NewClient(apiKey, projectID string) *Client {
	return NewClientWithConfig(DefaultClientConfig(apiKey, projectID))
}

// NewClientWithConfig creates an analytics client with custom config.
func NewClientWithConfig(config ClientConfig) *Client {
	return &Client{
		apiKey:    config.APIKey,
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		projectID: config.ProjectID,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// queryRequest is the HogQL query envelope.
type queryRequest struct {
	Query struct {
		Kind  string `json:"kind"`
		Query string `json:"query"`
	} `json:"query"`
}

// queryResponse carries raw result rows. Each row is
// [distinct_id, event, properties_json, timestamp].
type queryResponse struct {
	Results [][]json.RawMessage `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// QueryEvents fetches the user's raw events for the last daysBack days,
// newest first. An empty result set is valid.
func (c *Client) QueryEvents(ctx context.Context, distinctID string, daysBack, limit int) ([][]json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("analytics API key not configured")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Rate limiting: the query API allows ~120 requests/hour.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	hogql := fmt.Sprintf(
		"SELECT distinct_id, event, properties, timestamp FROM events"+
			" WHERE timestamp >= today() - INTERVAL %d DAY AND distinct_id = '%s'"+
			" ORDER BY timestamp DESC LIMIT %d",
		daysBack, strings.ReplaceAll(distinctID, "'", ""), limit)

	var reqBody queryRequest
	reqBody.Query.Kind = "HogQLQuery"
	reqBody.Query.Query = hogql

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/api/projects/%s/query/", c.baseURL, c.projectID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	logging.BehaviorDebug("querying events for %s (days=%d limit=%d)", distinctID, daysBack, limit)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("failed to parse query response: %w", err)
	}
	if qr.Error != "" {
		return nil, fmt.Errorf("query error: %s", qr.Error)
	}

	logging.Behavior("fetched %d events for %s", len(qr.Results), distinctID)
	return qr.Results, nil
}
