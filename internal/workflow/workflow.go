// Package workflow runs the branch deployment pipeline: a base commit on
// the main branch, a per-user branch carrying the user-specific edits,
// a deployment of that branch to a user-addressable subdomain, and a
// cookie-keyed routing rule steering the user there. Successful runs are
// recorded in the deployment registry; Cleanup walks it all back.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// PersonalizationData carries the file contents the workflow commits.
// BaseFiles land on the main branch (aggregate patterns, not single-user);
// UserFiles land on the user's branch.
type PersonalizationData struct {
	Cohort    string
	BaseFiles map[string]string
	UserFiles map[string]string
}

// Result reports one completed workflow run.
type Result struct {
	UserID       string                 `json:"user_id"`
	Branch       string                 `json:"branch_name"`
	BaseCommit   string                 `json:"base_commit"`
	CommitHash   string                 `json:"commit_hash"`
	DeploymentID string                 `json:"deployment_id"`
	URL          string                 `json:"personalized_url"`
	RoutingRule  string                 `json:"routing_rule,omitempty"`
	Status       types.DeploymentStatus `json:"status"`
}

// Config wires the workflow's collaborators.
type Config struct {
	VC       types.VersionControl
	Deployer types.Deployer
	Router   types.Router
	Registry types.DeploymentRegistry

	// MainBranch is the branch base commits land on. Defaults to "main".
	MainBranch string
	// FallbackURL is the default experience routing rules fall through to.
	FallbackURL string
	RuleTTL     time.Duration
}

// Workflow executes branch deployments for personalized variants.
type Workflow struct {
	vc          types.VersionControl
	deployer    types.Deployer
	router      types.Router
	registry    types.DeploymentRegistry
	mainBranch  string
	fallbackURL string
	ruleTTL     time.Duration
}

// New creates a Workflow from the wired collaborators.
func New(cfg Config) *Workflow {
	mainBranch := cfg.MainBranch
	if mainBranch == "" {
		mainBranch = "main"
	}
	ruleTTL := cfg.RuleTTL
	if ruleTTL <= 0 {
		ruleTTL = time.Hour
	}
	return &Workflow{
		vc:          cfg.VC,
		deployer:    cfg.Deployer,
		router:      cfg.Router,
		registry:    cfg.Registry,
		mainBranch:  mainBranch,
		fallbackURL: cfg.FallbackURL,
		ruleTTL:     ruleTTL,
	}
}

// HandlePersonalization runs the five-stage pipeline for one user. Stages
// 1-4 short-circuit on failure; routing (stage 5) is best-effort. A
// *types.DeployError from stage 4 signals the caller to fall back to the
// non-branched flow.
func (w *Workflow) HandlePersonalization(ctx context.Context, userID string, data PersonalizationData) (Result, error) {
	fail := func(stage string, err error) (Result, error) {
		logging.WorkflowError("user %s: stage %s failed: %v", userID, stage, err)
		return Result{}, &types.PersonalizationError{UserID: userID, Stage: stage, Err: err}
	}

	logging.Workflow("user %s: starting branch deployment (cohort=%s)", userID, data.Cohort)

	// Stage 1: base commit on main.
	baseCommit, err := w.baseCommit(ctx, data)
	if err != nil {
		return fail("base-commit", err)
	}

	// Stage 2: per-user branch off the base commit.
	branch, err := w.vc.CreateBranch(ctx, baseCommit, types.BranchName(userID))
	if err != nil {
		return fail("branch", err)
	}

	// Stage 3: user-specific commit on the branch.
	commitHash := baseCommit
	if len(data.UserFiles) > 0 {
		message := fmt.Sprintf("Personalization for user %s", userID)
		commitHash, err = w.vc.CommitToBranch(ctx, branch, data.UserFiles, message)
		if err != nil {
			return fail("user-commit", err)
		}
	}

	record := &types.BranchDeployment{
		UserID:     userID,
		Branch:     branch,
		CommitHash: commitHash,
	}

	// Stage 4: deploy the branch. A provider failure is recorded and
	// surfaced as-is so the caller can fall back without branching.
	dep, err := w.deployer.DeployBranch(ctx, branch, types.Subdomain(userID))
	if err != nil {
		record.Status = types.StatusFailed
		if rerr := w.registry.Put(record); rerr != nil {
			logging.StoreError("user %s: failed to record deploy failure: %v", userID, rerr)
		}
		logging.WorkflowError("user %s: stage deploy failed: %v", userID, err)
		return Result{}, err
	}
	record.DeploymentID = dep.ID
	record.URL = dep.URL
	record.Status = types.DeploymentStatus(dep.Status)
	if record.Status == "" {
		record.Status = types.StatusDeploying
	}

	// Stage 5: routing, best-effort. The deployment is reachable by URL
	// even when the edge rule could not be installed.
	ruleID, err := w.router.CreateRule(ctx, types.RuleSpec{
		MatchCookie: "user_id",
		CookieValue: userID,
		Target:      dep.URL,
		Fallback:    w.fallbackURL,
		TTL:         w.ruleTTL,
	})
	if err != nil {
		logging.RoutingWarn("user %s: routing rule not installed: %v", userID, err)
	} else {
		record.RoutingRule = ruleID
	}

	if err := w.registry.Put(record); err != nil {
		return fail("registry", err)
	}

	logging.Workflow("user %s: branch %s deployed at %s (status=%s)", userID, branch, dep.URL, record.Status)
	return Result{
		UserID:       userID,
		Branch:       branch,
		BaseCommit:   baseCommit,
		CommitHash:   commitHash,
		DeploymentID: dep.ID,
		URL:          dep.URL,
		RoutingRule:  record.RoutingRule,
		Status:       record.Status,
	}, nil
}

// baseCommit commits the aggregate pattern files to main, or returns the
// current head when there is nothing aggregate to record.
func (w *Workflow) baseCommit(ctx context.Context, data PersonalizationData) (string, error) {
	if len(data.BaseFiles) == 0 {
		return w.vc.Head(ctx)
	}
	return w.vc.CommitToBranch(ctx, w.mainBranch, data.BaseFiles, "Base personalization update - aggregate pattern")
}

// Status returns the registry record for userID, or types.ErrNotFound.
func (w *Workflow) Status(userID string) (*types.BranchDeployment, error) {
	return w.registry.Get(userID)
}

// List returns all recorded deployments.
func (w *Workflow) List() ([]*types.BranchDeployment, error) {
	return w.registry.List()
}

// Cleanup deletes a user's deployment, branch, routing rule, and registry
// entry. With a positive maxAge, records younger than the threshold are
// left alone. Missing records are a no-op success, so repeated calls are
// safe.
func (w *Workflow) Cleanup(ctx context.Context, userID string, maxAge time.Duration) error {
	record, err := w.registry.Get(userID)
	if errors.Is(err, types.ErrNotFound) {
		logging.Workflow("cleanup %s: no deployment recorded", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("cleanup %s: %w", userID, err)
	}

	if maxAge > 0 && time.Since(record.UpdatedAt) < maxAge {
		logging.Workflow("cleanup %s: deployment younger than %s, keeping", userID, maxAge)
		return nil
	}

	if record.RoutingRule != "" {
		if err := w.router.DeleteRule(ctx, record.RoutingRule); err != nil {
			// Routing was best-effort on the way in too.
			logging.RoutingWarn("cleanup %s: rule %s not removed: %v", userID, record.RoutingRule, err)
		}
	}
	if record.URL != "" {
		if err := w.deployer.DeleteDeployment(ctx, record.URL); err != nil {
			return fmt.Errorf("cleanup %s: delete deployment: %w", userID, err)
		}
	}
	if err := w.vc.DeleteBranch(ctx, record.Branch); err != nil {
		return fmt.Errorf("cleanup %s: delete branch: %w", userID, err)
	}
	if err := w.registry.Delete(userID); err != nil {
		return fmt.Errorf("cleanup %s: registry: %w", userID, err)
	}

	logging.Workflow("cleanup %s: removed branch %s and deployment %s", userID, record.Branch, record.URL)
	return nil
}
