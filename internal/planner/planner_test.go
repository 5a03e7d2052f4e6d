package planner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailor/internal/types"
)

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func (s *stubClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return s.response, s.err
}

func TestParsePlanFlat(t *testing.T) {
	raw := `{
		"changes": [{"type": "emphasize", "target": "PricingCTA", "action": "move to top", "reason": "pricing interest"}],
		"summary": "surface pricing",
		"cohort": "price_sensitive",
		"signals": ["Pricing"]
	}`

	plan, err := ParsePlan(raw)
	require.NoError(t, err)

	want := types.ChangePlan{
		Intents: []types.EditIntent{{
			Kind:   types.IntentEmphasize,
			Target: "PricingCTA",
			Action: "move to top",
			Reason: "pricing interest",
		}},
		Summary: "surface pricing",
		Cohort:  "price_sensitive",
		Signals: []string{"Pricing"},
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePlanNestedInferred(t *testing.T) {
	raw := `{
		"changes": [],
		"summary": "no-op",
		"inferred": {"cohort_guess": "jobs_seeker", "top_clicks_guess": ["Jobs"]}
	}`

	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "jobs_seeker", plan.Cohort)
	assert.Equal(t, []string{"Jobs"}, plan.Signals)
	assert.True(t, plan.IsEmpty())
}

func TestParsePlanFencedWithProse(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"changes\": [], \"cohort\": \"browser\"}\n```\nLet me know."

	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "browser", plan.Cohort)
}

func TestParsePlanMalformed(t *testing.T) {
	_, err := ParsePlan("I could not produce JSON, sorry.")
	assert.Error(t, err)

	_, err = ParsePlan(`{"changes": [truncated`)
	assert.Error(t, err)
}

func TestParsePlanDefaults(t *testing.T) {
	plan, err := ParsePlan(`{}`)
	require.NoError(t, err)
	assert.Equal(t, types.CohortUnknown, plan.Cohort)
	assert.Equal(t, "no-op", plan.Summary)
}

func TestServiceDegradesOnMalformedResponse(t *testing.T) {
	svc := New(&stubClient{response: "total nonsense"})

	plan, err := svc.Plan(context.Background(), types.PlanRequest{Path: "page.tsx", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, types.EmptyPlan(), plan)
}

func TestServiceSurfacesTransportErrors(t *testing.T) {
	svc := New(&stubClient{err: errors.New("connection refused")})

	plan, err := svc.Plan(context.Background(), types.PlanRequest{Path: "page.tsx", Content: "x"})
	require.Error(t, err)

	var perr *types.PlannerError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "page.tsx", perr.Path)
	assert.Equal(t, types.EmptyPlan(), plan)
}

func TestBuildUserPromptSections(t *testing.T) {
	req := types.PlanRequest{
		Path:             "src/app/page.tsx",
		Content:          "export default function Page() {}",
		ReferenceContext: "COMPONENT LIBRARY REFERENCE (DO NOT MODIFY THESE):",
		Behavior:         types.BehaviorSummary{RawText: `[["u1","$autocapture","{}","ts"]]`},
	}

	prompt := BuildUserPrompt(req)
	assert.Contains(t, prompt, "=== CURRENT APP FILE TO MODIFY: src/app/page.tsx ===")
	assert.Contains(t, prompt, req.Content)
	assert.Contains(t, prompt, "RAW ANALYTICS EVENT LOGS")
	assert.Contains(t, prompt, req.Behavior.RawText)
	assert.Contains(t, prompt, `"cohort"`)
}

func TestBuildUserPromptEmptyBehavior(t *testing.T) {
	prompt := BuildUserPrompt(types.PlanRequest{Path: "p.tsx", Content: "x"})
	assert.Contains(t, prompt, "(no behavior data available)")
}

func TestBuildReferenceContext(t *testing.T) {
	root := t.TempDir()
	compDir := filepath.Join(root, "src", "components")
	require.NoError(t, os.MkdirAll(compDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(compDir, "Hero.tsx"), []byte("export const Hero = () => null"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(compDir, "notes.md"), []byte("ignored"), 0644))

	ctx, err := BuildReferenceContext(root, filepath.Join("src", "components"))
	require.NoError(t, err)

	assert.Contains(t, ctx, "DO NOT MODIFY")
	assert.Contains(t, ctx, "=== src/components/Hero.tsx ===")
	assert.Contains(t, ctx, "export const Hero")
	assert.NotContains(t, ctx, "ignored")
}

func TestBuildReferenceContextMissingDir(t *testing.T) {
	ctx, err := BuildReferenceContext(t.TempDir(), "src/components")
	require.NoError(t, err)
	assert.Contains(t, ctx, "DO NOT MODIFY")
}

func TestAnthropicClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.Write([]byte(`{"content": [{"type": "text", "text": "{\"changes\": []}"}]}`))
	}))
	defer srv.Close()

	client := NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-20250514",
		Timeout: 5 * time.Second,
	})

	out, err := client.Complete(context.Background(), "plan please")
	require.NoError(t, err)
	assert.Equal(t, `{"changes": []}`, out)
}

func TestAnthropicClientRequiresKey(t *testing.T) {
	client := NewAnthropicClient("")
	_, err := client.Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestFactoryErrors(t *testing.T) {
	// No keys at all.
	_, err := NewClientFromConfig(context.Background(), cfgWith("", "", ""))
	assert.Error(t, err)

	// Provider selected without its key.
	_, err = NewClientFromConfig(context.Background(), cfgWith("anthropic", "", "g-key"))
	assert.Error(t, err)
}

func TestFactoryPriority(t *testing.T) {
	// Anthropic wins when both keys are present and no provider is set.
	client, err := NewClientFromConfig(context.Background(), cfgWith("", "a-key", "g-key"))
	require.NoError(t, err)
	_, ok := client.(*AnthropicClient)
	assert.True(t, ok)
}
