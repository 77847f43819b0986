// Package sqlite persists execution records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/netopsd/netopsd/internal/storage"
)

// Store is a SQLite implementation of ExecutionStore.
type Store struct {
	db *sql.DB
}

var _ storage.ExecutionStore = (*Store)(nil)

const defaultListLimit = 100

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			identity TEXT NOT NULL,
			args TEXT,
			success INTEGER NOT NULL DEFAULT 0,
			return_code INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_tool ON executions(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_identity ON executions(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) RecordExecution(ctx context.Context, exec *storage.Execution) error {
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now()
	}

	query := `INSERT INTO executions (id, tool, identity, args, success, return_code, duration_ns, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		exec.ID, exec.Tool, exec.Identity, exec.Args,
		exec.Success, exec.ReturnCode, int64(exec.Duration), exec.Error, exec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, opts storage.ListOptions) ([]*storage.Execution, error) {
	query := `SELECT id, tool, identity, args, success, return_code, duration_ns, error, created_at
		FROM executions WHERE 1=1`
	var params []any

	if opts.Tool != "" {
		query += " AND tool = ?"
		params = append(params, opts.Tool)
	}
	if opts.Identity != "" {
		query += " AND identity = ?"
		params = append(params, opts.Identity)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var execs []*storage.Execution
	for rows.Next() {
		var exec storage.Execution
		var durationNS int64
		var args, errText sql.NullString
		if err := rows.Scan(&exec.ID, &exec.Tool, &exec.Identity, &args,
			&exec.Success, &exec.ReturnCode, &durationNS, &errText, &exec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec.Args = args.String
		exec.Error = errText.String
		exec.Duration = time.Duration(durationNS)
		execs = append(execs, &exec)
	}
	return execs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
