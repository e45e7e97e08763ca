package tasks

import (
	"context"
	"time"
)

type TaskType string

const (
	TaskTypeIngest  TaskType = "ingest"
	TaskTypePublish TaskType = "publish"
)

// Runner is one repeating pipeline action.
type Runner interface {
	Run(ctx context.Context) error
}

// Task tracks a single execution of a repeating action.
type Task struct {
	Type      TaskType
	StartedAt time.Time
}

func NewTask(taskType TaskType) Task {
	return Task{Type: taskType, StartedAt: time.Now()}
}

func (t Task) Duration() time.Duration {
	return time.Since(t.StartedAt)
}
