package behavior

import (
	"encoding/json"
	"sort"
	"strings"

	"tailor/internal/types"
)

// eventProps is the subset of event properties the parser cares about.
type eventProps struct {
	Pathname          string      `json:"$pathname"`
	PrevPathname      string      `json:"$prev_pageview_pathname"`
	Page              string      `json:"page"`
	CurrentURL        string      `json:"$current_url"`
	ElText            string      `json:"$el_text"`
	NavItem           string      `json:"nav_item"`
	Target            string      `json:"target"`
	TimeOnPageSeconds json.Number `json:"time_on_page_seconds"`
	MaxScrollDepth    json.Number `json:"max_scroll_depth"`
	PrevMaxScrollPct  json.Number `json:"$prev_pageview_max_scroll_percentage"`
}

// pageKey extracts a simple page key from a path or URL: last segment,
// extension stripped, empty means "home".
func pageKey(path string) string {
	segs := strings.Split(path, "/")
	base := segs[len(segs)-1]
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		return "home"
	}
	return base
}

// ParseEvents converts raw array-of-events rows into a BehaviorSummary.
// Each row looks like [distinct_id, event_name, properties_json, timestamp, ...].
// Malformed rows are skipped, not fatal.
func ParseEvents(rows [][]json.RawMessage) types.BehaviorSummary {
	clickCounts := make(map[string]int)
	timeOnSection := make(map[string]float64)
	scrollDepth := make(map[string]float64)
	pagesSeen := make(map[string]int)

	for _, row := range rows {
		if len(row) < 3 {
			continue
		}

		var eventName string
		if err := json.Unmarshal(row[1], &eventName); err != nil {
			continue
		}

		var props eventProps
		var propsText string
		if err := json.Unmarshal(row[2], &propsText); err == nil {
			// Properties arrive as a JSON string inside the row.
			_ = json.Unmarshal([]byte(propsText), &props)
		} else {
			_ = json.Unmarshal(row[2], &props)
		}

		path := props.Pathname
		if path == "" {
			path = props.PrevPathname
		}
		if path == "" {
			path = props.Page
		}
		if path == "" {
			path = props.CurrentURL
		}
		page := pageKey(path)
		pagesSeen[page]++

		switch eventName {
		case "$autocapture", "navigation_click":
			label := props.ElText
			if label == "" {
				label = props.NavItem
			}
			if label == "" {
				label = props.Target
			}
			if label != "" {
				clickCounts[label]++
			}

		case "page_exit", "$pageleave":
			if top, err := props.TimeOnPageSeconds.Float64(); err == nil {
				timeOnSection[page] += top
			}
			depth, err := props.MaxScrollDepth.Float64()
			if err != nil {
				depth, err = props.PrevMaxScrollPct.Float64()
			}
			if err == nil {
				// Normalize 0..100 to 0..1
				if depth > 1.0 {
					depth = depth / 100.0
				}
				if depth > scrollDepth[page] {
					scrollDepth[page] = depth
				}
			}
		}
	}

	summary := types.BehaviorSummary{
		ClickCounts:   clickCounts,
		TimeOnSection: timeOnSection,
		ScrollDepth:   scrollDepth,
		PagesSeen:     pagesSeen,
		SessionCount:  1,
	}
	summary.CohortHints = DeriveCohortHints(summary)
	return summary
}

// MostClicked returns click labels ordered by count descending,
// ties broken alphabetically.
func MostClicked(counts map[string]int) []string {
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// DeriveCohortHints applies simple heuristics over the parsed summary.
// These are hints only; the planner makes the final cohort call.
func DeriveCohortHints(s types.BehaviorSummary) []string {
	var hints []string
	for _, label := range MostClicked(s.ClickCounts) {
		switch strings.ToLower(label) {
		case "jobs":
			hints = append(hints, "jobs_seeker")
		case "apply":
			hints = append(hints, "apply_focused")
		}
	}
	if _, ok := s.TimeOnSection["pricing"]; ok {
		hints = append(hints, "price_sensitive")
	}
	return hints
}
