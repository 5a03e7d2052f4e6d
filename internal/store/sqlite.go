package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tailor/internal/logging"
	"tailor/internal/types"
)

// SQLite persists the registry to a local database file so deployments
// survive process restarts.
type SQLite struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSQLite opens (or creates) the registry database at path.
func NewSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Opened registry database at %s", path)
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		user_id TEXT PRIMARY KEY,
		branch_name TEXT NOT NULL,
		deployment_id TEXT,
		deployment_url TEXT,
		commit_hash TEXT,
		routing_rule TEXT,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get returns the record for userID, or types.ErrNotFound.
func (s *SQLite) Get(userID string) (*types.BranchDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT user_id, branch_name, deployment_id, deployment_url,
		       commit_hash, routing_rule, status, created_at, updated_at
		FROM deployments WHERE user_id = ?`, userID)

	dep, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment: %w", err)
	}
	return dep, nil
}

// Put upserts the record for dep.UserID and stamps UpdatedAt.
func (s *SQLite) Put(dep *types.BranchDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	createdAt := dep.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO deployments
			(user_id, branch_name, deployment_id, deployment_url,
			 commit_hash, routing_rule, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			branch_name = excluded.branch_name,
			deployment_id = excluded.deployment_id,
			deployment_url = excluded.deployment_url,
			commit_hash = excluded.commit_hash,
			routing_rule = excluded.routing_rule,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		dep.UserID, dep.Branch, dep.DeploymentID, dep.URL,
		dep.CommitHash, dep.RoutingRule, string(dep.Status), createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to write deployment: %w", err)
	}
	return nil
}

// Delete removes the record for userID. Deleting a missing record is a no-op.
func (s *SQLite) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM deployments WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}
	return nil
}

// List returns all records ordered by user id.
func (s *SQLite) List() ([]*types.BranchDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT user_id, branch_name, deployment_id, deployment_url,
		       commit_hash, routing_rule, status, created_at, updated_at
		FROM deployments ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var out []*types.BranchDeployment
	for rows.Next() {
		dep, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read deployment: %w", err)
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*types.BranchDeployment, error) {
	var dep types.BranchDeployment
	var status string
	if err := row.Scan(&dep.UserID, &dep.Branch, &dep.DeploymentID, &dep.URL,
		&dep.CommitHash, &dep.RoutingRule, &status, &dep.CreatedAt, &dep.UpdatedAt); err != nil {
		return nil, err
	}
	dep.Status = types.DeploymentStatus(status)
	return &dep, nil
}
