package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RunStore persists replay runs and their value series.
type RunStore interface {
	Create(ctx context.Context, run Run) error
	Finish(ctx context.Context, run Run) error
	GetByID(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, opts ListOpts) ([]Run, error)
	InsertValues(ctx context.Context, samples []ValueSample) error
	ListValues(ctx context.Context, runID string, opts ListOpts) ([]ValueSample, error)
	Count(ctx context.Context) (int64, error)
}

// AuditStore persists the append-only order event trail.
type AuditStore interface {
	InsertBatch(ctx context.Context, events []OrderEvent) error
	ListByRun(ctx context.Context, runID string, opts ListOpts) ([]OrderEvent, error)
}
