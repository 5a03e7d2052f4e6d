package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by registry lookups for unknown users.
var ErrNotFound = errors.New("not found")

// PlannerError wraps a failed or malformed planner call for one file.
// The engine absorbs these: the file degrades to an empty plan and the
// run continues.
type PlannerError struct {
	Path string
	Err  error
}

func (e *PlannerError) Error() string {
	return fmt.Sprintf("planner failed for %s: %v", e.Path, e.Err)
}

func (e *PlannerError) Unwrap() error { return e.Err }

// ApplierError wraps a failed applier call for one file. The engine
// absorbs these too: the file degrades to its original content, which
// the no-op path then handles.
type ApplierError struct {
	Path string
	Err  error
}

func (e *ApplierError) Error() string {
	return fmt.Sprintf("applier failed for %s: %v", e.Path, e.Err)
}

func (e *ApplierError) Unwrap() error { return e.Err }

// WriteError is fatal: a filesystem write failed mid-run, the run aborts
// and the guard restores the entry page snapshot.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed for %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CommitError is fatal. Files already written to disk are not reverted;
// the working tree keeps the personalized content without a commit.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// DeployError signals a deployment-provider failure. Callers fall back
// to the non-branched personalization flow instead of erroring the user.
type DeployError struct {
	Branch string
	Err    error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy failed for branch %s: %v", e.Branch, e.Err)
}

func (e *DeployError) Unwrap() error { return e.Err }

// RoutingError is best-effort: it is logged and the workflow still
// succeeds.
type RoutingError struct {
	Err error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing rule failed: %v", e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// PersonalizationError is the single aggregate error surfaced from a
// failed run, naming the stage that triggered the abort.
type PersonalizationError struct {
	UserID string
	Stage  string
	Err    error
}

func (e *PersonalizationError) Error() string {
	return fmt.Sprintf("personalization failed for user %s at stage %s: %v", e.UserID, e.Stage, e.Err)
}

func (e *PersonalizationError) Unwrap() error { return e.Err }
