// Package deploy talks to the hosting provider's deployment and routing
// APIs. The Client implements both types.Deployer and types.Router: branch
// deployments get user-addressable subdomains, and cookie-keyed routing
// rules steer each user to their own deployment.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// Client is an HTTP client for the deployment provider.
type Client struct {
	apiKey     string
	baseURL    string
	domain     string
	ruleTTL    time.Duration
	httpClient *http.Client
}

// Config holds configuration for the deployment client.
type Config struct {
	APIKey  string
	BaseURL string
	// Domain is the apex under which per-user subdomains are created.
	Domain  string
	RuleTTL time.Duration
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.freestyle.sh",
		Domain:  "freestyle.sh",
		RuleTTL: time.Hour,
		Timeout: 60 * time.Second,
	}
}

// New creates a deployment client with default config.
func New(apiKey string) *Client {
	return NewWithConfig(DefaultConfig(apiKey))
}

// NewWithConfig creates a deployment client with custom config.
func NewWithConfig(config Config) *Client {
	if config.RuleTTL <= 0 {
		config.RuleTTL = time.Hour
	}
	return &Client{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		domain:  config.Domain,
		ruleTTL: config.RuleTTL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// RuleTTL returns the TTL the client applies to routing rules.
func (c *Client) RuleTTL() time.Duration {
	return c.ruleTTL
}

// Domain returns the apex domain for per-user subdomains.
func (c *Client) Domain() string {
	return c.domain
}

// doJSON sends a request with Bearer auth and decodes the JSON response
// into out. Retries on 429 with exponential backoff. A nil out discards
// the body. Tolerant404 treats 404 as success for idempotent deletes.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, tolerant404 bool) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key not configured")
	}

	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	var jsonData []byte
	if payload != nil {
		var err error
		jsonData, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		var body io.Reader
		if jsonData != nil {
			body = bytes.NewReader(jsonData)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode == http.StatusNotFound && tolerant404 {
			return nil
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type deployRequest struct {
	Name   string       `json:"name"`
	Source deploySource `json:"source"`
	Config deployConfig `json:"config"`
}

type deploySource struct {
	Type   string `json:"type"`
	Branch string `json:"branch"`
}

type deployConfig struct {
	Subdomain   string `json:"subdomain"`
	Environment string `json:"environment"`
	AutoDeploy  bool   `json:"auto_deploy"`
	Framework   string `json:"framework"`
}

type deployResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DeployBranch deploys a git branch under the given subdomain and returns
// the provider's view of the deployment. The returned status starts as
// "deploying"; the provider flips it to live asynchronously.
func (c *Client) DeployBranch(ctx context.Context, branch, subdomain string) (types.Deployment, error) {
	payload := deployRequest{
		Name: "personalized-" + subdomain,
		Source: deploySource{
			Type:   "git",
			Branch: branch,
		},
		Config: deployConfig{
			Subdomain:   subdomain,
			Environment: "production",
			AutoDeploy:  true,
			Framework:   "next",
		},
	}

	var resp deployResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/deployments", payload, &resp, false); err != nil {
		return types.Deployment{}, &types.DeployError{Branch: branch, Err: err}
	}

	dep := types.Deployment{
		ID:     resp.ID,
		URL:    fmt.Sprintf("https://%s.%s", subdomain, c.domain),
		Status: resp.Status,
	}
	if dep.Status == "" {
		dep.Status = string(types.StatusDeploying)
	}

	logging.Deploy("Deployed branch %s -> %s (id=%s, status=%s)", branch, dep.URL, dep.ID, dep.Status)
	return dep, nil
}

// DeleteDeployment removes a deployment by its URL. A deployment the
// provider no longer knows about is not an error.
func (c *Client) DeleteDeployment(ctx context.Context, deploymentURL string) error {
	path := "/v1/deployments?url=" + url.QueryEscape(deploymentURL)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return &types.DeployError{Err: err}
	}
	logging.Deploy("Deleted deployment %s", deploymentURL)
	return nil
}
