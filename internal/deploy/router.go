package deploy

import (
	"context"
	"fmt"
	"net/http"

	"tailor/internal/logging"
	"tailor/internal/types"
)

type routingRequest struct {
	TargetURL     string        `json:"target_url"`
	RoutingRules  routingRules  `json:"routing_rules"`
	CacheSettings cacheSettings `json:"cache_settings"`
}

type routingRules struct {
	MatchType   string `json:"match_type"`
	CookieName  string `json:"cookie_name"`
	CookieValue string `json:"cookie_value"`
	Fallback    string `json:"fallback"`
}

type cacheSettings struct {
	TTL          int  `json:"ttl"`
	VaryOnCookie bool `json:"vary_on_cookie"`
}

type routingResponse struct {
	RoutingID string `json:"routing_id"`
	Status    string `json:"status"`
}

// CreateRule installs a cookie-keyed routing rule and returns its ID.
// Requests matching the cookie route to spec.Target; everything else
// falls through to spec.Fallback.
func (c *Client) CreateRule(ctx context.Context, spec types.RuleSpec) (string, error) {
	ttl := spec.TTL
	if ttl <= 0 {
		ttl = c.ruleTTL
	}

	payload := routingRequest{
		TargetURL: spec.Target,
		RoutingRules: routingRules{
			MatchType:   "cookie",
			CookieName:  spec.MatchCookie,
			CookieValue: spec.CookieValue,
			Fallback:    spec.Fallback,
		},
		CacheSettings: cacheSettings{
			TTL:          int(ttl.Seconds()),
			VaryOnCookie: true,
		},
	}

	var resp routingResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/routing", payload, &resp, false); err != nil {
		return "", &types.RoutingError{Err: err}
	}
	if resp.RoutingID == "" {
		return "", &types.RoutingError{Err: fmt.Errorf("provider returned no routing id")}
	}

	logging.Routing("Created rule %s: %s=%s -> %s", resp.RoutingID, spec.MatchCookie, spec.CookieValue, spec.Target)
	return resp.RoutingID, nil
}

// DeleteRule removes a routing rule. A rule the provider no longer knows
// about is not an error.
func (c *Client) DeleteRule(ctx context.Context, ruleID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/routing/"+ruleID, nil, nil, true); err != nil {
		return &types.RoutingError{Err: err}
	}
	logging.Routing("Deleted rule %s", ruleID)
	return nil
}
