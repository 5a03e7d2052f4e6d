package applier

import (
	"context"
	"fmt"
	"strings"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// Completer is the minimal LLM surface the applier needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service implements types.Applier over a Completer.
type Service struct {
	client Completer
}

// New creates an applier service.
func New(client Completer) *Service {
	return &Service{client: client}
}

// Apply merges the plan into the original content and returns the full
// updated file. Failures surface as *types.ApplierError; the engine
// treats them as a no-op for the file.
func (s *Service) Apply(ctx context.Context, original string, plan types.ChangePlan) (string, error) {
	timer := logging.StartTimer(logging.CategoryApplier, "apply")
	defer timer.Stop()

	raw, err := s.client.Complete(ctx, BuildApplyPrompt(original, plan))
	if err != nil {
		return "", &types.ApplierError{Err: err}
	}

	updated := StripFences(raw)
	if strings.TrimSpace(updated) == "" {
		return "", &types.ApplierError{Err: fmt.Errorf("empty file content returned")}
	}
	return updated, nil
}

// BuildApplyPrompt renders the merge instruction for the fast-apply model.
func BuildApplyPrompt(original string, plan types.ChangePlan) string {
	instructions := make([]string, 0, len(plan.Intents))
	for i, intent := range plan.Intents {
		instructions = append(instructions, fmt.Sprintf("%d. %s %s: %s. Reason: %s",
			i+1, strings.ToUpper(string(intent.Kind)), intent.Target, intent.Action, intent.Reason))
	}

	instructionBlock := strings.Join(instructions, "\n")
	if strings.TrimSpace(instructionBlock) == "" {
		instructionBlock = "Add the required header comment only."
	}

	cohort := plan.Cohort
	if cohort == "" {
		cohort = types.CohortUnknown
	}

	return fmt.Sprintf(`Apply the following changes to this React/Next.js .tsx page file content. Keep TypeScript types intact.

STRICT REQUIREMENTS:
- Maintain all imports and functionality
- Do NOT modify any analytics code (imports, hooks, provider usage)
- Do NOT modify any component source; only change usage/order/props in this file
- Add a file header comment: // Personalized (cohort guess): %s
- Output the full updated file content only (no markdown fences).

ORIGINAL FILE:
%s

INSTRUCTIONS:
%s
`, cohort, original, instructionBlock)
}

// StripFences removes a single wrapping markdown code fence if the model
// added one despite instructions.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return raw
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	} else {
		return raw
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimRight(text, "\n") + "\n"
}
