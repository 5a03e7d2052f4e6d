package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(t *testing.T, distinctID, event string, props map[string]interface{}) []json.RawMessage {
	t.Helper()
	propsJSON, err := json.Marshal(props)
	require.NoError(t, err)
	// Properties arrive as a JSON string inside the row, matching the
	// HogQL result shape.
	quoted, err := json.Marshal(string(propsJSON))
	require.NoError(t, err)
	return []json.RawMessage{
		json.RawMessage(fmt.Sprintf("%q", distinctID)),
		json.RawMessage(fmt.Sprintf("%q", event)),
		json.RawMessage(quoted),
		json.RawMessage(`"2026-08-30T10:00:00Z"`),
	}
}

func TestParseEventsClicksAndPages(t *testing.T) {
	rows := [][]json.RawMessage{
		row(t, "u1", "$autocapture", map[string]interface{}{"$el_text": "Pricing", "$pathname": "/pricing"}),
		row(t, "u1", "$autocapture", map[string]interface{}{"$el_text": "Pricing", "$pathname": "/pricing"}),
		row(t, "u1", "navigation_click", map[string]interface{}{"nav_item": "Jobs", "$pathname": "/jobs"}),
	}

	s := ParseEvents(rows)

	assert.Equal(t, 2, s.ClickCounts["Pricing"])
	assert.Equal(t, 1, s.ClickCounts["Jobs"])
	assert.Equal(t, 2, s.PagesSeen["pricing"])
	assert.Equal(t, 1, s.PagesSeen["jobs"])
}

func TestParseEventsTimeAndScroll(t *testing.T) {
	rows := [][]json.RawMessage{
		row(t, "u1", "page_exit", map[string]interface{}{
			"$pathname":            "/pricing",
			"time_on_page_seconds": 42.5,
			"max_scroll_depth":     80,
		}),
		row(t, "u1", "$pageleave", map[string]interface{}{
			"$pathname":            "/pricing",
			"time_on_page_seconds": 10,
			"max_scroll_depth":     0.6,
		}),
	}

	s := ParseEvents(rows)

	assert.InDelta(t, 52.5, s.TimeOnSection["pricing"], 0.001)
	// 80 normalizes to 0.8 and beats 0.6
	assert.InDelta(t, 0.8, s.ScrollDepth["pricing"], 0.001)
}

func TestParseEventsSkipsMalformedRows(t *testing.T) {
	rows := [][]json.RawMessage{
		{json.RawMessage(`"u1"`)}, // too short
		row(t, "u1", "$autocapture", map[string]interface{}{"$el_text": "Apply"}),
	}

	s := ParseEvents(rows)
	assert.Equal(t, 1, s.ClickCounts["Apply"])
}

func TestPageKey(t *testing.T) {
	cases := map[string]string{
		"/pricing":                 "pricing",
		"/jobs/index.html":         "index",
		"":                         "home",
		"/":                        "home",
		"https://x.com/about?y=1":  "about",
		"/deeply/nested/page.tsx":  "page",
	}
	for in, want := range cases {
		assert.Equal(t, want, pageKey(in), "pageKey(%q)", in)
	}
}

func TestDeriveCohortHints(t *testing.T) {
	rows := [][]json.RawMessage{
		row(t, "u1", "navigation_click", map[string]interface{}{"nav_item": "Jobs"}),
		row(t, "u1", "page_exit", map[string]interface{}{"$pathname": "/pricing", "time_on_page_seconds": 30}),
	}

	s := ParseEvents(rows)

	if diff := cmp.Diff([]string{"jobs_seeker", "price_sensitive"}, s.CohortHints); diff != "" {
		t.Errorf("cohort hints mismatch (-want +got):\n%s", diff)
	}
}

func TestMostClickedOrdering(t *testing.T) {
	got := MostClicked(map[string]int{"b": 2, "a": 2, "c": 5})
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestSourceSampleFile(t *testing.T) {
	dir := t.TempDir()
	rows := [][]json.RawMessage{
		row(t, "u1", "$autocapture", map[string]interface{}{"$el_text": "Apply"}),
	}
	data, err := json.Marshal(rows)
	require.NoError(t, err)
	path := filepath.Join(dir, "sample.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	src := NewSource(nil, WithSampleFile(path))
	s, err := src.Summary(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ClickCounts["Apply"])
	assert.NotEmpty(t, s.RawText)
}

func TestSourceDegradesToEmptySummary(t *testing.T) {
	// No client, no sample file: empty summary, no error.
	src := NewSource(nil)
	s, err := src.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())

	// Unreadable sample file degrades the same way.
	src = NewSource(nil, WithSampleFile(filepath.Join(t.TempDir(), "missing.json")))
	s, err = src.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}
