// Package gitvc drives the git CLI for the personalization workflow: commit
// on the working branch, branch creation for per-user deployments, and
// commits onto those branches without touching the checked-out tree.
package gitvc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// runner executes one git invocation in dir with extra env and returns
// trimmed stdout. Swapped out in tests.
type runner func(ctx context.Context, dir string, env []string, args ...string) (string, error)

// Git implements types.VersionControl against a local repository.
type Git struct {
	dir     string
	timeout time.Duration
	run     runner
}

// New creates a Git bound to the repository at dir. Each command gets its
// own timeout when the caller's context has no deadline.
func New(dir string, timeout time.Duration) *Git {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Git{dir: dir, timeout: timeout, run: execGit}
}

func execGit(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *Git) git(ctx context.Context, args ...string) (string, error) {
	return g.gitEnv(ctx, nil, args...)
}

func (g *Git) gitEnv(ctx context.Context, env []string, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.run(ctx, g.dir, env, args...)
}

// StageAndCommit stages paths and commits them, returning the new commit
// hash. Failures wrap in *types.CommitError.
func (g *Git) StageAndCommit(ctx context.Context, paths []string, message string) (string, error) {
	if len(paths) == 0 {
		return "", &types.CommitError{Err: fmt.Errorf("no paths to commit")}
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := g.git(ctx, addArgs...); err != nil {
		return "", &types.CommitError{Err: err}
	}
	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		return "", &types.CommitError{Err: err}
	}
	hash, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", &types.CommitError{Err: err}
	}

	logging.Git("Committed %d file(s): %s (%s)", len(paths), message, shortHash(hash))
	return hash, nil
}

// Head returns the current HEAD commit hash.
func (g *Git) Head(ctx context.Context) (string, error) {
	hash, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", &types.CommitError{Err: err}
	}
	return hash, nil
}

// CreateBranch creates (or moves) a branch at fromCommit and returns the
// branch name. The working tree's checked-out branch is untouched.
func (g *Git) CreateBranch(ctx context.Context, fromCommit, name string) (string, error) {
	if _, err := g.git(ctx, "branch", "-f", name, fromCommit); err != nil {
		return "", &types.CommitError{Err: err}
	}
	logging.Git("Created branch %s at %s", name, shortHash(fromCommit))
	return name, nil
}

// CommitToBranch commits files onto branch without a checkout: the files
// are layered over the branch tip in a throwaway index, written as a tree,
// committed, and the branch ref advanced.
func (g *Git) CommitToBranch(ctx context.Context, branch string, files map[string]string, message string) (string, error) {
	parent, err := g.git(ctx, "rev-parse", "refs/heads/"+branch)
	if err != nil {
		return "", &types.CommitError{Err: fmt.Errorf("branch %s: %w", branch, err)}
	}

	indexFile := filepath.Join(os.TempDir(), ".tailor-index-"+uuid.New().String()[:8])
	defer os.Remove(indexFile)
	env := []string{"GIT_INDEX_FILE=" + indexFile}

	if _, err := g.gitEnv(ctx, env, "read-tree", parent); err != nil {
		return "", &types.CommitError{Err: err}
	}
	for path, content := range files {
		blob, err := g.hashObject(ctx, content)
		if err != nil {
			return "", &types.CommitError{Err: err}
		}
		cacheinfo := fmt.Sprintf("100644,%s,%s", blob, path)
		if _, err := g.gitEnv(ctx, env, "update-index", "--add", "--cacheinfo", cacheinfo); err != nil {
			return "", &types.CommitError{Err: err}
		}
	}
	tree, err := g.gitEnv(ctx, env, "write-tree")
	if err != nil {
		return "", &types.CommitError{Err: err}
	}
	commit, err := g.git(ctx, "commit-tree", tree, "-p", parent, "-m", message)
	if err != nil {
		return "", &types.CommitError{Err: err}
	}
	if _, err := g.git(ctx, "update-ref", "refs/heads/"+branch, commit); err != nil {
		return "", &types.CommitError{Err: err}
	}

	logging.Git("Committed %d file(s) to branch %s (%s)", len(files), branch, shortHash(commit))
	return commit, nil
}

// DeleteBranch removes a branch. A missing branch is not an error so that
// cleanup stays idempotent.
func (g *Git) DeleteBranch(ctx context.Context, name string) error {
	if _, err := g.git(ctx, "branch", "-D", name); err != nil {
		if strings.Contains(err.Error(), "not found") {
			logging.Git("Branch %s already gone", name)
			return nil
		}
		return &types.CommitError{Err: err}
	}
	logging.Git("Deleted branch %s", name)
	return nil
}

func (g *Git) hashObject(ctx context.Context, content string) (string, error) {
	// hash-object reads from a file to avoid stdin plumbing in the runner.
	tmp := filepath.Join(os.TempDir(), ".tailor-blob-"+uuid.New().String()[:8])
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return "", err
	}
	defer os.Remove(tmp)
	return g.git(ctx, "hash-object", "-w", tmp)
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
