// Package types holds the shared data model and collaborator interfaces
// for the personalization engine. Keeping these here avoids import cycles
// between the engine, workflow, and provider packages.
package types

import (
	"strings"
	"time"
)

// BehaviorSummary is the parsed view of a user's interaction history.
// An all-zero summary is valid: absence of analytics data is a degraded
// mode, never an error.
type BehaviorSummary struct {
	CohortHints   []string           `json:"cohort_hints,omitempty"`
	ClickCounts   map[string]int     `json:"click_counts,omitempty"`
	TimeOnSection map[string]float64 `json:"time_on_section,omitempty"`
	ScrollDepth   map[string]float64 `json:"scroll_depth,omitempty"`
	PagesSeen     map[string]int     `json:"pages_seen,omitempty"`
	SessionCount  int                `json:"session_count,omitempty"`

	// RawText carries the unparsed event log when available. The planner
	// prompt prefers raw logs so the model can infer signals we did not
	// think to extract.
	RawText string `json:"-"`
}

// IsEmpty reports whether the summary carries no behavioral signal at all.
func (b BehaviorSummary) IsEmpty() bool {
	return len(b.CohortHints) == 0 &&
		len(b.ClickCounts) == 0 &&
		len(b.TimeOnSection) == 0 &&
		len(b.ScrollDepth) == 0 &&
		len(b.PagesSeen) == 0 &&
		b.RawText == ""
}

// IntentKind classifies a single proposed edit.
type IntentKind string

const (
	IntentReorder     IntentKind = "reorder"
	IntentHide        IntentKind = "hide"
	IntentEmphasize   IntentKind = "emphasize"
	IntentConditional IntentKind = "conditional"
	IntentProps       IntentKind = "props"
)

// EditIntent is one typed edit proposed by the planner.
type EditIntent struct {
	Kind   IntentKind `json:"type"`
	Target string     `json:"target"`
	Action string     `json:"action"`
	Reason string     `json:"reason"`
}

// ChangePlan is the planner's structured output for one file.
// A plan with zero intents is valid; the engine falls back to a
// deterministic header comment rather than treating it as a failure.
type ChangePlan struct {
	Intents []EditIntent `json:"changes"`
	Summary string       `json:"summary"`
	Cohort  string       `json:"cohort"`
	Signals []string     `json:"signals,omitempty"`
}

// EmptyPlan is the degrade-path plan used when the planner fails or
// returns something unparseable.
func EmptyPlan() ChangePlan {
	return ChangePlan{Summary: "no-op", Cohort: CohortUnknown}
}

// IsEmpty reports whether the plan proposes no edits.
func (p ChangePlan) IsEmpty() bool {
	return len(p.Intents) == 0
}

// CohortUnknown is the sentinel cohort used when nothing could be inferred.
const CohortUnknown = "unknown"

// KnownCohort reports whether c is a real inferred cohort label.
func KnownCohort(c string) bool {
	return c != "" && !strings.EqualFold(c, CohortUnknown)
}

// FileRecord is the per-file unit of work. Original is the immutable
// pre-run snapshot; Current is mutated as the pipeline progresses.
type FileRecord struct {
	Path     string
	Original string
	Current  string
}

// RunResult aggregates the outcome of one orchestrator run.
type RunResult struct {
	RunID         string   `json:"run_id"`
	UserID        string   `json:"user_id"`
	Cohort        string   `json:"cohort"`
	ModifiedFiles []string `json:"files_modified"`
	// CommitHash is empty when no file changed. That is a success,
	// not an error: "no changes needed" is a valid terminal state.
	CommitHash string `json:"commit_hash,omitempty"`
	Success    bool   `json:"success"`
}

// DeploymentStatus tracks a branch deployment's lifecycle.
// deploying -> live on provider confirmation, deploying -> failed on
// provider error; a failed deployment only leaves that state through a
// fresh workflow run.
type DeploymentStatus string

const (
	StatusDeploying DeploymentStatus = "deploying"
	StatusLive      DeploymentStatus = "live"
	StatusFailed    DeploymentStatus = "failed"
)

// BranchDeployment is the registry record for one user's personalized
// deployment. The registry is its exclusive owner; nothing else mutates it.
type BranchDeployment struct {
	UserID       string           `json:"user_id"`
	Branch       string           `json:"branch_name"`
	DeploymentID string           `json:"deployment_id"`
	URL          string           `json:"deployment_url"`
	CommitHash   string           `json:"commit_hash"`
	RoutingRule  string           `json:"routing_rule,omitempty"`
	Status       DeploymentStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// BranchName returns the deterministic per-user branch name.
func BranchName(userID string) string {
	return "user-" + userID + "-personalized"
}

// Subdomain returns the deterministic per-user deployment subdomain.
func Subdomain(userID string) string {
	return userID + "-personalized"
}
