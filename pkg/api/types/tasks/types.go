package tasks

import (
	"time"

	taskdb "github.com/bcrant/mlrun/pkg/domain/task/db"
)

// Task is one background task on the wire, polled by clients waiting for a
// long-running operation such as ingestion.
type Task struct {
	Name           string    `json:"name"`
	Project        string    `json:"project"`
	State          string    `json:"state"`
	Error          string    `json:"error,omitempty"`
	TimeoutSeconds int64     `json:"timeout,omitempty"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
}

type TasksOutput struct {
	Tasks []Task `json:"background_tasks"`
}

func Compose(record taskdb.Record) Task {
	return Task{
		Name:           record.Name,
		Project:        record.Project,
		State:          string(record.State),
		Error:          record.Error,
		TimeoutSeconds: int64(record.Timeout.Seconds()),
		Created:        record.CreatedAt,
		Updated:        record.UpdatedAt,
	}
}
