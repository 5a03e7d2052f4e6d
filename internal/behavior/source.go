package behavior

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// Source implements types.BehaviorSource over the analytics client, with
// an optional sample-file mode for demo runs and offline development.
type Source struct {
	client     *Client
	sampleFile string
	daysBack   int
	limit      int
}

// SourceOption customizes a Source.
type SourceOption func(*Source)

// WithSampleFile makes the source read a raw event log from disk instead
// of querying the API.
func WithSampleFile(path string) SourceOption {
	return func(s *Source) { s.sampleFile = path }
}

// WithWindow overrides the query window and row limit.
func WithWindow(daysBack, limit int) SourceOption {
	return func(s *Source) {
		s.daysBack = daysBack
		s.limit = limit
	}
}

// NewSource wraps an analytics client as a BehaviorSource. client may be
// nil when a sample file is configured.
func NewSource(client *Client, opts ...SourceOption) *Source {
	s := &Source{
		client:   client,
		daysBack: 30,
		limit:    500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary fetches and parses the user's behavior. Any failure degrades to
// an empty summary: personalization proceeds with no behavioral signal
// rather than failing the run.
func (s *Source) Summary(ctx context.Context, userID string) (types.BehaviorSummary, error) {
	if s.sampleFile != "" {
		return s.summaryFromFile()
	}
	if s.client == nil {
		logging.BehaviorWarn("no analytics client configured, proceeding with empty context")
		return types.BehaviorSummary{}, nil
	}

	rows, err := s.client.QueryEvents(ctx, userID, s.daysBack, s.limit)
	if err != nil {
		logging.BehaviorWarn("analytics query failed for %s, proceeding with empty context: %v", userID, err)
		return types.BehaviorSummary{}, nil
	}

	summary := ParseEvents(rows)
	if raw, err := json.Marshal(rows); err == nil {
		summary.RawText = string(raw)
	}
	return summary, nil
}

// summaryFromFile reads a raw event log from disk. The raw text is passed
// to the planner untouched; parsing is attempted for the structured fields.
func (s *Source) summaryFromFile() (types.BehaviorSummary, error) {
	data, err := os.ReadFile(s.sampleFile)
	if err != nil {
		logging.BehaviorWarn("sample file unreadable, proceeding with empty context: %v", err)
		return types.BehaviorSummary{}, nil
	}

	// Trim BOM to avoid weird tokens in the prompt.
	raw := strings.ReplaceAll(string(data), "\uFEFF", "")

	summary := types.BehaviorSummary{RawText: raw}
	var rows [][]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &rows); err == nil {
		summary = ParseEvents(rows)
		summary.RawText = raw
	}
	return summary, nil
}
