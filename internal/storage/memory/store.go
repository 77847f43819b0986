// Package memory keeps execution records in process memory. Useful for
// development and as the default when no SQLite path is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/netopsd/netopsd/internal/storage"
)

// Store is an in-memory implementation of ExecutionStore.
type Store struct {
	mu         sync.RWMutex
	executions []*storage.Execution
	maxRecords int
}

var _ storage.ExecutionStore = (*Store)(nil)

const (
	defaultMaxRecords = 10000
	defaultListLimit  = 100
)

// New creates a new in-memory store that retains at most defaultMaxRecords
// executions, evicting the oldest first.
func New() *Store {
	return &Store{maxRecords: defaultMaxRecords}
}

func (s *Store) RecordExecution(ctx context.Context, exec *storage.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now()
	}

	s.executions = append(s.executions, exec)
	if len(s.executions) > s.maxRecords {
		s.executions = s.executions[len(s.executions)-s.maxRecords:]
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, opts storage.ListOptions) ([]*storage.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	// Newest first.
	var result []*storage.Execution
	for i := len(s.executions) - 1; i >= 0 && len(result) < limit; i-- {
		exec := s.executions[i]
		if opts.Tool != "" && exec.Tool != opts.Tool {
			continue
		}
		if opts.Identity != "" && exec.Identity != opts.Identity {
			continue
		}
		result = append(result, exec)
	}
	return result, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
