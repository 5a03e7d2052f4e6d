// Package engine is the per-run personalization orchestrator. One Run
// walks the eligible page files, asks the planner for a change plan per
// file, merges accepted plans through the applier, writes the results,
// and commits when anything actually changed. The entry page sits behind
// a snapshot guard for the whole run so visitors never see a half-edited
// page.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tailor/internal/config"
	"tailor/internal/diff"
	"tailor/internal/logging"
	"tailor/internal/planner"
	"tailor/internal/types"
	"tailor/internal/workspace"
)

// runMu serializes runs: the guard owns the shared entry page of one
// checked-out tree, so only a single run may mutate it at a time.
var runMu sync.Mutex

// Config wires the orchestrator's collaborators.
type Config struct {
	Planner  types.Planner
	Applier  types.Applier
	Behavior types.BehaviorSource
	VC       types.VersionControl

	Workspace     config.WorkspaceConfig
	MaxConcurrent int
}

// Engine runs the personalization pipeline against one frontend tree.
type Engine struct {
	planner  types.Planner
	applier  types.Applier
	behavior types.BehaviorSource
	vc       types.VersionControl

	root          string
	appDir        string
	componentsDir string
	entryPage     string
	protected     []string
	maxConcurrent int
}

// New creates an Engine from the wired collaborators.
func New(cfg Config) *Engine {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	root := cfg.Workspace.FrontendRoot
	appDir := filepath.Join(root, cfg.Workspace.AppDir)
	return &Engine{
		planner:       cfg.Planner,
		applier:       cfg.Applier,
		behavior:      cfg.Behavior,
		vc:            cfg.VC,
		root:          root,
		appDir:        appDir,
		componentsDir: filepath.Join(root, cfg.Workspace.ComponentsDir),
		entryPage:     filepath.Join(appDir, cfg.Workspace.EntryPage),
		protected:     cfg.Workspace.ProtectedFiles,
		maxConcurrent: maxConcurrent,
	}
}

// fileOutcome is the typed per-file result. Degraded means an AI failure
// was absorbed on the no-op path rather than failing the run.
type fileOutcome int

const (
	outcomeUnmodified fileOutcome = iota
	outcomeModified
	outcomeDegraded
)

type fileResult struct {
	record  *types.FileRecord
	outcome fileOutcome
	cohort  string
	stats   diff.Stats
}

// Run executes one personalization pass for userID. A nil behavior
// summary is loaded from the behavior source; failure there degrades to
// an empty summary. The returned error, when non-nil, is always a
// *types.PersonalizationError naming the failed stage, and the entry
// page is guaranteed restored to its pre-run content.
func (e *Engine) Run(ctx context.Context, userID string, behavior *types.BehaviorSummary) (types.RunResult, error) {
	runMu.Lock()
	defer runMu.Unlock()

	runID := uuid.New().String()[:8]
	timer := logging.StartTimer(logging.CategoryEngine, "personalization run "+runID)
	defer timer.StopWithInfo()

	logging.Engine("run %s: user=%s", runID, userID)

	summary := e.loadBehavior(ctx, userID, behavior)

	records, err := workspace.Scan(e.appDir, e.protected)
	if err != nil {
		return types.RunResult{}, &types.PersonalizationError{UserID: userID, Stage: "scan", Err: err}
	}
	if len(records) == 0 {
		logging.EngineWarn("run %s: no eligible files under %s", runID, e.appDir)
		return types.RunResult{RunID: runID, UserID: userID, Cohort: types.CohortUnknown, Success: true}, nil
	}

	refContext, err := planner.BuildReferenceContext(e.root, e.componentsDir)
	if err != nil {
		logging.EngineWarn("run %s: reference context unavailable: %v", runID, err)
	}

	guard := workspace.NewGuard(e.entryPage)
	if err := guard.Engage(); err != nil {
		return types.RunResult{}, &types.PersonalizationError{UserID: userID, Stage: "guard", Err: err}
	}
	fail := func(stage string, err error) (types.RunResult, error) {
		if rerr := guard.Restore(); rerr != nil {
			logging.EngineError("run %s: restore after %s failure: %v", runID, stage, rerr)
		}
		return types.RunResult{}, &types.PersonalizationError{UserID: userID, Stage: stage, Err: err}
	}

	results, err := e.processFiles(ctx, records, refContext, summary)
	if err != nil {
		return fail("plan", err)
	}

	cohort := aggregateCohort(results)

	// Plans that declined to change anything still leave an artifact
	// when a cohort was inferred: the one-line header comment.
	var modified []*fileResult
	for _, r := range results {
		if r.outcome != outcomeModified && types.KnownCohort(r.cohort) {
			header := fmt.Sprintf("// Personalized (cohort guess): %s", r.cohort)
			withHeader := workspace.InjectHeader(r.record.Original, header)
			if !workspace.NormalizedEqual(withHeader, r.record.Original) {
				r.record.Current = withHeader
				r.outcome = outcomeModified
				r.stats = diff.DefaultEngine.Compute(e.relPath(r.record.Path), r.record.Original, withHeader)
			}
		}
		if r.outcome == outcomeModified {
			modified = append(modified, r)
		}
	}

	if len(modified) == 0 {
		logging.Engine("run %s: no changes needed", runID)
		if err := guard.Release(false); err != nil {
			return fail("release", err)
		}
		return types.RunResult{RunID: runID, UserID: userID, Cohort: cohort, Success: true}, nil
	}

	entryRewritten := false
	var paths []string
	var allStats []diff.Stats
	for _, r := range modified {
		if r.record.Path == e.entryPage {
			if err := guard.Publish(r.record.Current); err != nil {
				return fail("write", err)
			}
			entryRewritten = true
		} else {
			if err := workspace.StageWrite(r.record.Path, r.record.Current); err != nil {
				return fail("write", err)
			}
		}
		paths = append(paths, e.relPath(r.record.Path))
		allStats = append(allStats, r.stats)
	}
	sort.Strings(paths)
	logging.Engine("run %s: wrote %d file(s): %s", runID, len(paths), diff.Summary(allStats))

	if guard.Conflicted() {
		logging.EngineWarn("run %s: entry page was written externally during the run", runID)
	}

	message := fmt.Sprintf("chore(personalize): %s cohort=%s", userID, cohort)
	hash, err := e.vc.StageAndCommit(ctx, paths, message)
	if err != nil {
		// Already-written files stay on disk; the commit is the only
		// cross-file atomicity boundary.
		return fail("commit", err)
	}

	if err := guard.Release(entryRewritten); err != nil {
		return fail("release", err)
	}

	logging.Engine("run %s: committed %s cohort=%s files=%d", runID, hash, cohort, len(paths))
	return types.RunResult{
		RunID:         runID,
		UserID:        userID,
		Cohort:        cohort,
		ModifiedFiles: paths,
		CommitHash:    hash,
		Success:       true,
	}, nil
}

func (e *Engine) loadBehavior(ctx context.Context, userID string, behavior *types.BehaviorSummary) types.BehaviorSummary {
	if behavior != nil {
		return *behavior
	}
	if e.behavior == nil {
		return types.BehaviorSummary{}
	}
	summary, err := e.behavior.Summary(ctx, userID)
	if err != nil {
		// Degraded-but-valid: run proceeds with an empty context.
		logging.EngineWarn("behavior source unavailable for %s: %v", userID, err)
		return types.BehaviorSummary{}
	}
	return summary
}

// processFiles fans the plan->apply pipeline out over the records. Each
// file's own plan->apply pair stays ordered; files run concurrently up
// to maxConcurrent. Only context cancellation aborts the fan-out; AI
// failures degrade per file.
func (e *Engine) processFiles(ctx context.Context, records []types.FileRecord, refContext string, summary types.BehaviorSummary) ([]*fileResult, error) {
	results := make([]*fileResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.processFile(gctx, &records[i], refContext, summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) processFile(ctx context.Context, rec *types.FileRecord, refContext string, summary types.BehaviorSummary) *fileResult {
	rel := e.relPath(rec.Path)
	res := &fileResult{record: rec, outcome: outcomeUnmodified}

	plan, err := e.planner.Plan(ctx, types.PlanRequest{
		Path:             rel,
		Content:          rec.Original,
		ReferenceContext: refContext,
		Behavior:         summary,
	})
	if err != nil {
		// One file's planner failure must not block the others.
		logging.PlannerWarn("%s: %v (degrading to empty plan)", rel, err)
		plan = types.EmptyPlan()
		res.outcome = outcomeDegraded
	}
	res.cohort = plan.Cohort

	updated, err := e.applier.Apply(ctx, rec.Original, plan)
	if err != nil {
		logging.ApplierError("%s: %v (keeping original)", rel, err)
		updated = rec.Original
		res.outcome = outcomeDegraded
	}

	if workspace.NormalizedEqual(updated, rec.Original) {
		return res
	}

	rec.Current = updated
	res.outcome = outcomeModified
	res.stats = diff.DefaultEngine.Compute(rel, rec.Original, updated)
	logging.EngineDebug("%s: %s", rel, res.stats)
	return res
}

func (e *Engine) relPath(path string) string {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// aggregateCohort picks the most frequent known cohort across per-file
// plans, breaking ties lexicographically. Unknown only when no plan
// inferred anything.
func aggregateCohort(results []*fileResult) string {
	tally := make(map[string]int)
	for _, r := range results {
		if types.KnownCohort(r.cohort) {
			tally[r.cohort]++
		}
	}
	if len(tally) == 0 {
		return types.CohortUnknown
	}
	best, bestCount := "", -1
	for cohort, count := range tally {
		if count > bestCount || (count == bestCount && cohort < best) {
			best, bestCount = cohort, count
		}
	}
	return best
}
