// Package revstore keeps a history of service regenerations in SQLite.
package revstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Outcome of the restart that followed a regeneration.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeRunning Outcome = "running"
	OutcomeFailed  Outcome = "failed"
)

// ErrNotFound is returned when no revision matches.
var ErrNotFound = errors.New("revision not found")

// Revision is one regeneration of the service document.
type Revision struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	SourcePath     string    `json:"source_path,omitempty"`
	SourceSHA256   string    `json:"source_sha256"`
	DocumentSHA256 string    `json:"document_sha256"`
	Endpoints      []string  `json:"endpoints"`
	Outcome        Outcome   `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists revisions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS revisions (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			source_path TEXT,
			source_sha256 TEXT NOT NULL,
			document_sha256 TEXT NOT NULL,
			endpoints TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT,
			created_at INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_revisions_created_at ON revisions(created_at)",
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts rev, assigning its ID and creation time when unset.
func (s *Store) Record(ctx context.Context, rev Revision) (Revision, error) {
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	if rev.Outcome == "" {
		rev.Outcome = OutcomePending
	}
	if rev.Endpoints == nil {
		rev.Endpoints = []string{}
	}

	endpoints, err := json.Marshal(rev.Endpoints)
	if err != nil {
		return Revision{}, fmt.Errorf("encode endpoints: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO revisions (id, filename, source_path, source_sha256, document_sha256, endpoints, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.Filename, rev.SourcePath, rev.SourceSHA256, rev.DocumentSHA256,
		string(endpoints), string(rev.Outcome), rev.Error, rev.CreatedAt.UnixNano())
	if err != nil {
		return Revision{}, fmt.Errorf("insert revision: %w", err)
	}
	return rev, nil
}

// SetOutcome records how the restart after revision id ended.
func (s *Store) SetOutcome(ctx context.Context, id string, outcome Outcome, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE revisions SET outcome = ?, error = ? WHERE id = ?",
		string(outcome), errMsg, id)
	if err != nil {
		return fmt.Errorf("update revision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the revision with the given id.
func (s *Store) Get(ctx context.Context, id string) (Revision, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	return scan(row)
}

// Latest returns the most recent revision.
func (s *Store) Latest(ctx context.Context) (Revision, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" ORDER BY created_at DESC, rowid DESC LIMIT 1")
	return scan(row)
}

// List returns up to limit revisions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revs := []Revision{}
	for rows.Next() {
		rev, err := scan(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// Prune deletes all but the newest keep revisions and returns how many went.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM revisions WHERE id NOT IN (
			SELECT id FROM revisions ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `SELECT id, filename, source_path, source_sha256, document_sha256, endpoints, outcome, error, created_at FROM revisions`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Revision, error) {
	var (
		rev        Revision
		sourcePath sql.NullString
		errMsg     sql.NullString
		endpoints  string
		outcome    string
		createdAt  int64
	)
	err := row.Scan(&rev.ID, &rev.Filename, &sourcePath, &rev.SourceSHA256, &rev.DocumentSHA256,
		&endpoints, &outcome, &errMsg, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, ErrNotFound
	}
	if err != nil {
		return Revision{}, fmt.Errorf("scan revision: %w", err)
	}

	if err := json.Unmarshal([]byte(endpoints), &rev.Endpoints); err != nil {
		return Revision{}, fmt.Errorf("decode endpoints: %w", err)
	}
	rev.SourcePath = sourcePath.String
	rev.Error = errMsg.String
	rev.Outcome = Outcome(outcome)
	rev.CreatedAt = time.Unix(0, createdAt).UTC()
	return rev, nil
}
