package types

import (
	"context"
	"time"
)

// BehaviorSource yields a user's behavior summary. Implementations must
// treat "no data" as an empty summary, not an error.
type BehaviorSource interface {
	Summary(ctx context.Context, userID string) (BehaviorSummary, error)
}

// PlanRequest carries everything the planner needs for one file.
type PlanRequest struct {
	Path             string
	Content          string
	ReferenceContext string
	Behavior         BehaviorSummary
}

// Planner proposes a structured change plan for a single file.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (ChangePlan, error)
}

// Applier merges a change plan into the original content and returns the
// full updated file. Full-file replacement semantics, not a patch format.
type Applier interface {
	Apply(ctx context.Context, original string, plan ChangePlan) (string, error)
}

// VersionControl abstracts the git operations the engine and workflow need.
type VersionControl interface {
	// StageAndCommit stages the given paths and commits them, returning
	// the new commit hash.
	StageAndCommit(ctx context.Context, paths []string, message string) (string, error)
	// Head returns the current HEAD commit hash.
	Head(ctx context.Context) (string, error)
	// CreateBranch creates a branch at fromCommit and returns its ref.
	CreateBranch(ctx context.Context, fromCommit, name string) (string, error)
	// CommitToBranch writes files and commits them on the named branch
	// without disturbing the working tree's checked-out branch.
	CommitToBranch(ctx context.Context, branch string, files map[string]string, message string) (string, error)
	// DeleteBranch removes a branch. Deleting a missing branch is not an error.
	DeleteBranch(ctx context.Context, name string) error
}

// Deployment is the provider's view of one deployed branch.
type Deployment struct {
	ID     string `json:"deployment_id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Deployer deploys version-control branches to user-addressable URLs.
type Deployer interface {
	DeployBranch(ctx context.Context, branch, subdomain string) (Deployment, error)
	DeleteDeployment(ctx context.Context, url string) error
}

// RuleSpec describes a cookie-keyed routing rule with a fallback target
// for the default experience.
type RuleSpec struct {
	MatchCookie string        `json:"match_cookie"`
	CookieValue string        `json:"cookie_value"`
	Target      string        `json:"target"`
	Fallback    string        `json:"fallback"`
	TTL         time.Duration `json:"-"`
}

// Router manages traffic routing rules at the edge.
type Router interface {
	CreateRule(ctx context.Context, spec RuleSpec) (string, error)
	DeleteRule(ctx context.Context, ruleID string) error
}

// DeploymentRegistry is the swappable store for user -> BranchDeployment.
// Get returns ErrNotFound when no record exists for the user.
type DeploymentRegistry interface {
	Get(userID string) (*BranchDeployment, error)
	Put(dep *BranchDeployment) error
	Delete(userID string) error
	List() ([]*BranchDeployment, error)
	Close() error
}
