package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// Service implements types.Planner over an LLMClient.
type Service struct {
	client LLMClient
}

// New creates a planner service.
func New(client LLMClient) *Service {
	return &Service{client: client}
}

// Plan asks the model for a change plan for one file. Transport failures
// surface as *types.PlannerError so the engine can apply its degrade
// policy; a malformed response body degrades to an empty plan here,
// because a model that answered with prose has still answered.
func (s *Service) Plan(ctx context.Context, req types.PlanRequest) (types.ChangePlan, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, fmt.Sprintf("plan %s", req.Path))
	defer timer.Stop()

	raw, err := s.client.CompleteWithSystem(ctx, systemPrompt, BuildUserPrompt(req))
	if err != nil {
		return types.EmptyPlan(), &types.PlannerError{Path: req.Path, Err: err}
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		logging.PlannerWarn("unparseable plan for %s, degrading to empty plan: %v", req.Path, err)
		return types.EmptyPlan(), nil
	}

	logging.Planner("plan for %s: %d intents, cohort=%s", req.Path, len(plan.Intents), plan.Cohort)
	return plan, nil
}

// planEnvelope tolerates both the flat shape we ask for and the nested
// "inferred" shape older prompt revisions produced.
type planEnvelope struct {
	Changes []types.EditIntent `json:"changes"`
	Summary string             `json:"summary"`
	Cohort  string             `json:"cohort"`
	Signals []string           `json:"signals"`

	Inferred *struct {
		CohortGuess        string   `json:"cohort_guess"`
		TopClicksGuess     []string `json:"top_clicks_guess"`
		TimeOnSectionGuess []string `json:"time_on_sections_guess"`
	} `json:"inferred,omitempty"`
}

// ParsePlan extracts a ChangePlan from a model response. It strips code
// fences and tolerates prose around the JSON object.
func ParsePlan(raw string) (types.ChangePlan, error) {
	text := extractJSON(raw)
	if text == "" {
		return types.ChangePlan{}, fmt.Errorf("no JSON object in response")
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return types.ChangePlan{}, fmt.Errorf("invalid plan JSON: %w", err)
	}

	plan := types.ChangePlan{
		Intents: env.Changes,
		Summary: env.Summary,
		Cohort:  env.Cohort,
		Signals: env.Signals,
	}
	if plan.Cohort == "" && env.Inferred != nil {
		plan.Cohort = env.Inferred.CohortGuess
		if len(plan.Signals) == 0 {
			plan.Signals = env.Inferred.TopClicksGuess
		}
	}
	if plan.Cohort == "" {
		plan.Cohort = types.CohortUnknown
	}
	if plan.Summary == "" {
		plan.Summary = "no-op"
	}
	return plan, nil
}

// extractJSON strips markdown fences and isolates the outermost JSON
// object from surrounding prose.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
