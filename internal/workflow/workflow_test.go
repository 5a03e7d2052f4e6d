package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"tailor/internal/store"
	"tailor/internal/types"
)

type stubVC struct {
	head          string
	branchCommits map[string]string
	failBranch    error
	deleted       []string
}

func newStubVC() *stubVC {
	return &stubVC{head: "head0", branchCommits: map[string]string{}}
}

func (v *stubVC) StageAndCommit(context.Context, []string, string) (string, error) {
	return "", errors.New("not used by the workflow")
}

func (v *stubVC) Head(context.Context) (string, error) { return v.head, nil }

func (v *stubVC) CreateBranch(_ context.Context, fromCommit, name string) (string, error) {
	if v.failBranch != nil {
		return "", v.failBranch
	}
	v.branchCommits[name] = fromCommit
	return name, nil
}

func (v *stubVC) CommitToBranch(_ context.Context, branch string, files map[string]string, _ string) (string, error) {
	hash := branch + string(rune('0'+len(files)))
	v.branchCommits[branch] = hash
	return hash, nil
}

func (v *stubVC) DeleteBranch(_ context.Context, name string) error {
	v.deleted = append(v.deleted, name)
	delete(v.branchCommits, name)
	return nil
}

type stubDeployer struct {
	fail     error
	deleted  []string
	deployed []string
}

func (d *stubDeployer) DeployBranch(_ context.Context, branch, subdomain string) (types.Deployment, error) {
	if d.fail != nil {
		return types.Deployment{}, d.fail
	}
	d.deployed = append(d.deployed, branch)
	return types.Deployment{
		ID:     "dep-" + subdomain,
		URL:    "https://" + subdomain + ".freestyle.sh",
		Status: "deploying",
	}, nil
}

func (d *stubDeployer) DeleteDeployment(_ context.Context, url string) error {
	d.deleted = append(d.deleted, url)
	return nil
}

type stubRouter struct {
	fail    error
	rules   []types.RuleSpec
	deleted []string
}

func (r *stubRouter) CreateRule(_ context.Context, spec types.RuleSpec) (string, error) {
	if r.fail != nil {
		return "", r.fail
	}
	r.rules = append(r.rules, spec)
	return "route-" + spec.CookieValue, nil
}

func (r *stubRouter) DeleteRule(_ context.Context, ruleID string) error {
	r.deleted = append(r.deleted, ruleID)
	return nil
}

type fixture struct {
	vc       *stubVC
	deployer *stubDeployer
	router   *stubRouter
	registry types.DeploymentRegistry
	wf       *Workflow
}

func newFixture() *fixture {
	f := &fixture{
		vc:       newStubVC(),
		deployer: &stubDeployer{},
		router:   &stubRouter{},
		registry: store.NewMemory(),
	}
	f.wf = New(Config{
		VC:          f.vc,
		Deployer:    f.deployer,
		Router:      f.router,
		Registry:    f.registry,
		FallbackURL: "https://example.freestyle.sh",
		RuleTTL:     time.Hour,
	})
	return f
}

func userData() PersonalizationData {
	return PersonalizationData{
		Cohort:    "price_sensitive",
		UserFiles: map[string]string{"src/app/page.tsx": "personalized"},
	}
}

func TestHandlePersonalizationSuccess(t *testing.T) {
	f := newFixture()

	res, err := f.wf.HandlePersonalization(context.Background(), "u1", userData())
	if err != nil {
		t.Fatalf("HandlePersonalization failed: %v", err)
	}
	if res.Branch != "user-u1-personalized" {
		t.Errorf("unexpected branch: %q", res.Branch)
	}
	if res.URL != "https://u1-personalized.freestyle.sh" {
		t.Errorf("unexpected url: %q", res.URL)
	}
	if res.Status != types.StatusDeploying {
		t.Errorf("fresh deployment should report deploying, got %s", res.Status)
	}
	if res.RoutingRule != "route-u1" {
		t.Errorf("unexpected rule: %q", res.RoutingRule)
	}
	if res.BaseCommit != "head0" {
		t.Errorf("no base files means base commit is head: %q", res.BaseCommit)
	}

	rule := f.router.rules[0]
	if rule.MatchCookie != "user_id" || rule.CookieValue != "u1" {
		t.Errorf("rule should key on the user cookie: %+v", rule)
	}
	if rule.Fallback != "https://example.freestyle.sh" {
		t.Errorf("rule should carry the default-experience fallback: %+v", rule)
	}

	record, err := f.registry.Get("u1")
	if err != nil {
		t.Fatalf("registry record missing: %v", err)
	}
	if record.Branch != res.Branch || record.URL != res.URL || record.RoutingRule != res.RoutingRule {
		t.Errorf("registry record out of sync: %+v vs %+v", record, res)
	}
}

func TestHandlePersonalizationBaseFilesCommitToMain(t *testing.T) {
	f := newFixture()
	data := userData()
	data.BaseFiles = map[string]string{"src/app/page.tsx": "aggregate pattern"}

	res, err := f.wf.HandlePersonalization(context.Background(), "u1", data)
	if err != nil {
		t.Fatalf("HandlePersonalization failed: %v", err)
	}
	if res.BaseCommit == "head0" {
		t.Error("base files present: base commit should be a fresh commit on main")
	}
	if f.vc.branchCommits["user-u1-personalized"] == "" {
		t.Error("user branch missing")
	}
}

func TestHandlePersonalizationBranchFailureShortCircuits(t *testing.T) {
	f := newFixture()
	f.vc.failBranch = errors.New("ref locked")

	_, err := f.wf.HandlePersonalization(context.Background(), "u1", userData())
	var pe *types.PersonalizationError
	if !errors.As(err, &pe) || pe.Stage != "branch" {
		t.Fatalf("expected branch-stage error, got %v", err)
	}
	if len(f.deployer.deployed) != 0 {
		t.Error("deploy must not run after a branch failure")
	}
	if _, err := f.registry.Get("u1"); !errors.Is(err, types.ErrNotFound) {
		t.Error("failed workflow before deploy must not write the registry")
	}
}

func TestHandlePersonalizationDeployFailureSurfacesDeployError(t *testing.T) {
	f := newFixture()
	f.deployer.fail = &types.DeployError{Branch: "user-u1-personalized", Err: errors.New("build failed")}

	_, err := f.wf.HandlePersonalization(context.Background(), "u1", userData())
	var de *types.DeployError
	if !errors.As(err, &de) {
		t.Fatalf("caller needs the DeployError for fallback, got %v", err)
	}

	record, rerr := f.registry.Get("u1")
	if rerr != nil {
		t.Fatalf("deploy failure should be recorded: %v", rerr)
	}
	if record.Status != types.StatusFailed {
		t.Errorf("expected failed status, got %s", record.Status)
	}
}

func TestHandlePersonalizationRoutingFailureIsBestEffort(t *testing.T) {
	f := newFixture()
	f.router.fail = &types.RoutingError{Err: errors.New("edge unavailable")}

	res, err := f.wf.HandlePersonalization(context.Background(), "u1", userData())
	if err != nil {
		t.Fatalf("routing failure must not fail the workflow: %v", err)
	}
	if res.RoutingRule != "" {
		t.Errorf("no rule should be recorded: %q", res.RoutingRule)
	}
	record, _ := f.registry.Get("u1")
	if record.RoutingRule != "" {
		t.Errorf("registry should not carry a rule: %+v", record)
	}
}

func TestHandlePersonalizationOverwritesPriorRecord(t *testing.T) {
	f := newFixture()

	if _, err := f.wf.HandlePersonalization(context.Background(), "u1", userData()); err != nil {
		t.Fatal(err)
	}
	first, _ := f.registry.Get("u1")

	data := userData()
	data.UserFiles["src/app/about/page.tsx"] = "more"
	if _, err := f.wf.HandlePersonalization(context.Background(), "u1", data); err != nil {
		t.Fatal(err)
	}
	second, _ := f.registry.Get("u1")

	if first.CommitHash == second.CommitHash {
		t.Error("second run should overwrite the prior record")
	}
	all, _ := f.registry.List()
	if len(all) != 1 {
		t.Errorf("one record per user, got %d", len(all))
	}
}

func TestCleanupRemovesEverything(t *testing.T) {
	f := newFixture()
	if _, err := f.wf.HandlePersonalization(context.Background(), "u1", userData()); err != nil {
		t.Fatal(err)
	}

	if err := f.wf.Cleanup(context.Background(), "u1", 0); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if len(f.router.deleted) != 1 || f.router.deleted[0] != "route-u1" {
		t.Errorf("routing rule not removed: %v", f.router.deleted)
	}
	if len(f.deployer.deleted) != 1 {
		t.Errorf("deployment not removed: %v", f.deployer.deleted)
	}
	if len(f.vc.deleted) != 1 || f.vc.deleted[0] != "user-u1-personalized" {
		t.Errorf("branch not removed: %v", f.vc.deleted)
	}
	if _, err := f.registry.Get("u1"); !errors.Is(err, types.ErrNotFound) {
		t.Error("registry entry should be gone")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	f := newFixture()

	if err := f.wf.Cleanup(context.Background(), "ghost", time.Hour); err != nil {
		t.Errorf("cleanup of unknown user must succeed: %v", err)
	}

	if _, err := f.wf.HandlePersonalization(context.Background(), "u1", userData()); err != nil {
		t.Fatal(err)
	}
	if err := f.wf.Cleanup(context.Background(), "u1", 0); err != nil {
		t.Fatalf("first cleanup failed: %v", err)
	}
	if err := f.wf.Cleanup(context.Background(), "u1", 0); err != nil {
		t.Errorf("second cleanup must be a no-op success: %v", err)
	}
}

func TestCleanupRespectsMaxAge(t *testing.T) {
	f := newFixture()
	if _, err := f.wf.HandlePersonalization(context.Background(), "u1", userData()); err != nil {
		t.Fatal(err)
	}

	if err := f.wf.Cleanup(context.Background(), "u1", 24*time.Hour); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := f.registry.Get("u1"); err != nil {
		t.Error("young deployment should survive an aged cleanup")
	}
	if len(f.vc.deleted) != 0 {
		t.Error("young deployment's branch should survive")
	}
}

func TestStatusAndList(t *testing.T) {
	f := newFixture()
	if _, err := f.wf.Status("u1"); !errors.Is(err, types.ErrNotFound) {
		t.Error("unknown user should be ErrNotFound")
	}

	if _, err := f.wf.HandlePersonalization(context.Background(), "u1", userData()); err != nil {
		t.Fatal(err)
	}
	record, err := f.wf.Status("u1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if record.Status != types.StatusDeploying {
		t.Errorf("unexpected status: %s", record.Status)
	}

	all, err := f.wf.List()
	if err != nil || len(all) != 1 {
		t.Errorf("List: %v, %d records", err, len(all))
	}
}
