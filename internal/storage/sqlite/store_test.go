package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/netopsd/netopsd/internal/storage"
)

func TestSQLiteStore_RecordAndList(t *testing.T) {
	// In-memory SQLite with shared cache for testing.
	store, err := New("file:exec1?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	exec := &storage.Execution{
		ID:         "exec-1",
		Tool:       "ping",
		Identity:   "key:abcd1234",
		Args:       `{"host":"example.com"}`,
		Success:    true,
		ReturnCode: 0,
		Duration:   125 * time.Millisecond,
	}
	if err := store.RecordExecution(context.Background(), exec); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}

	execs, err := store.ListExecutions(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	got := execs[0]
	if got.ID != "exec-1" || got.Tool != "ping" || got.Identity != "key:abcd1234" {
		t.Errorf("execution = %+v", got)
	}
	if got.Duration != 125*time.Millisecond {
		t.Errorf("Duration = %v, want 125ms", got.Duration)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestSQLiteStore_Filters(t *testing.T) {
	store, err := New("file:exec2?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	seed := []*storage.Execution{
		{ID: "e1", Tool: "ping", Identity: "key:aaaa0000"},
		{ID: "e2", Tool: "dig", Identity: "key:aaaa0000"},
		{ID: "e3", Tool: "ping", Identity: "ip:10.0.0.1"},
	}
	for _, e := range seed {
		if err := store.RecordExecution(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	byTool, err := store.ListExecutions(ctx, storage.ListOptions{Tool: "ping"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTool) != 2 {
		t.Errorf("tool filter: got %d, want 2", len(byTool))
	}

	byIdentity, err := store.ListExecutions(ctx, storage.ListOptions{Identity: "key:aaaa0000"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byIdentity) != 2 {
		t.Errorf("identity filter: got %d, want 2", len(byIdentity))
	}

	limited, err := store.ListExecutions(ctx, storage.ListOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit: got %d, want 1", len(limited))
	}
}

func TestSQLiteStore_FailedExecution(t *testing.T) {
	store, err := New("file:exec3?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	exec := &storage.Execution{
		ID:         "exec-fail",
		Tool:       "traceroute",
		Identity:   "ip:unknown",
		Success:    false,
		ReturnCode: -1,
		Error:      "command timed out",
	}
	if err := store.RecordExecution(context.Background(), exec); err != nil {
		t.Fatal(err)
	}

	execs, err := store.ListExecutions(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	if execs[0].Success || execs[0].ReturnCode != -1 || execs[0].Error != "command timed out" {
		t.Errorf("execution = %+v", execs[0])
	}
}
