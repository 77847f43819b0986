// Package storage defines the execution audit trail: every dispatched tool
// run is recorded so operators can answer "who ran what, when, and did it
// work".
package storage

import (
	"context"
	"time"
)

// Execution is one recorded tool run.
type Execution struct {
	ID         string        `json:"id"`
	Tool       string        `json:"tool"`
	Identity   string        `json:"identity"`
	Args       string        `json:"args,omitempty"`
	Success    bool          `json:"success"`
	ReturnCode int           `json:"return_code"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ListOptions bounds an execution listing.
type ListOptions struct {
	Tool     string // filter by tool name, empty matches all
	Identity string // filter by client identity, empty matches all
	Limit    int    // 0 means the store default
}

// ExecutionStore persists and lists execution records.
type ExecutionStore interface {
	RecordExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, opts ListOptions) ([]*Execution, error)
	Close() error
}
