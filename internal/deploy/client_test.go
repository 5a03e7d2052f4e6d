package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tailor/internal/types"
)

func newTestClient(serverURL string) *Client {
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = serverURL
	cfg.Domain = "example.dev"
	cfg.Timeout = 5 * time.Second
	return NewWithConfig(cfg)
}

func TestDeployBranch(t *testing.T) {
	var gotAuth string
	var gotBody deployRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/deployments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "dep-42", "status": "deploying"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	dep, err := c.DeployBranch(context.Background(), "user-u1-personalized", "u1-personalized")
	if err != nil {
		t.Fatalf("DeployBranch failed: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.Source.Branch != "user-u1-personalized" || gotBody.Source.Type != "git" {
		t.Errorf("unexpected source: %+v", gotBody.Source)
	}
	if gotBody.Config.Subdomain != "u1-personalized" {
		t.Errorf("unexpected subdomain: %q", gotBody.Config.Subdomain)
	}
	if dep.ID != "dep-42" {
		t.Errorf("unexpected id: %q", dep.ID)
	}
	if dep.URL != "https://u1-personalized.example.dev" {
		t.Errorf("unexpected url: %q", dep.URL)
	}
	if dep.Status != "deploying" {
		t.Errorf("unexpected status: %q", dep.Status)
	}
}

func TestDeployBranchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "build queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.DeployBranch(context.Background(), "user-u1-personalized", "u1-personalized")
	var de *types.DeployError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeployError, got %v", err)
	}
	if de.Branch != "user-u1-personalized" {
		t.Errorf("error should carry the branch: %q", de.Branch)
	}
}

func TestDeleteDeploymentTolerates404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.DeleteDeployment(context.Background(), "https://u1-personalized.example.dev"); err != nil {
		t.Errorf("404 on delete should not error: %v", err)
	}
}

func TestCreateRule(t *testing.T) {
	var gotBody routingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/routing" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"routing_id": "route-u1", "status": "active"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	id, err := c.CreateRule(context.Background(), types.RuleSpec{
		MatchCookie: "user_id",
		CookieValue: "u1",
		Target:      "https://u1-personalized.example.dev",
		Fallback:    "https://example.dev",
		TTL:         time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if id != "route-u1" {
		t.Errorf("unexpected rule id: %q", id)
	}
	if gotBody.RoutingRules.MatchType != "cookie" || gotBody.RoutingRules.CookieName != "user_id" {
		t.Errorf("unexpected rules: %+v", gotBody.RoutingRules)
	}
	if gotBody.CacheSettings.TTL != 3600 || !gotBody.CacheSettings.VaryOnCookie {
		t.Errorf("unexpected cache settings: %+v", gotBody.CacheSettings)
	}
}

func TestCreateRuleDefaultTTL(t *testing.T) {
	var gotBody routingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"routing_id": "route-1"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.CreateRule(context.Background(), types.RuleSpec{MatchCookie: "user_id", CookieValue: "u1"}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if gotBody.CacheSettings.TTL != 3600 {
		t.Errorf("expected client default TTL 3600, got %d", gotBody.CacheSettings.TTL)
	}
}

func TestCreateRuleMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "active"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	var re *types.RoutingError
	if _, err := c.CreateRule(context.Background(), types.RuleSpec{MatchCookie: "user_id", CookieValue: "u1"}); !errors.As(err, &re) {
		t.Fatalf("expected RoutingError, got %v", err)
	}
}

func TestDeleteRule(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.DeleteRule(context.Background(), "route-u1"); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}
	if gotPath != "/v1/routing/route-u1" {
		t.Errorf("unexpected path: %q", gotPath)
	}
}

func TestRetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "dep-1", "status": "deploying"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	dep, err := c.DeployBranch(context.Background(), "b", "s")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if dep.ID != "dep-1" {
		t.Errorf("unexpected id: %q", dep.ID)
	}
}

func TestMissingAPIKey(t *testing.T) {
	cfg := DefaultConfig("")
	c := NewWithConfig(cfg)
	_, err := c.DeployBranch(context.Background(), "b", "s")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("expected configuration error, got %v", err)
	}
}
