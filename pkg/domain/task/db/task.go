package db

import (
	"context"
	"time"
)

// State of a background task.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Record is one background task. Tasks are unique per (project, name).
type Record struct {
	Project   string
	Name      string
	State     State
	Error     string
	Timeout   time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interface is the background-task table.
type Interface interface {
	// Upsert registers the task, resetting its state when it exists already.
	Upsert(ctx context.Context, record Record) error

	// Get fails wrapping domain.ErrMissing when the task is unknown.
	Get(ctx context.Context, project string, name string) (Record, error)

	// SetState transitions the task. reason is kept only for StateFailed.
	SetState(ctx context.Context, project string, name string, state State, reason string) error

	// List returns the project's tasks, most recently updated first.
	List(ctx context.Context, project string) ([]Record, error)
}
