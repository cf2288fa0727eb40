package queue

import (
	"context"
	"fmt"
	"time"

	ferrors "git.home.luguber.info/inful/docsbuild/internal/foundation/errors"
)

// TaskUpdateDocs is the task that checks out and builds one project version.
const TaskUpdateDocs = "update_docs"

// TaskArgs are the arguments of an update_docs task.
type TaskArgs struct {
	ProjectID int64 `json:"project_id"`
	VersionID int64 `json:"version_id"`
	Record    bool  `json:"record"`
	Force     bool  `json:"force"`
	Basic     bool  `json:"basic"`
	// BuildID is set when a build record was created by the trigger.
	BuildID int64 `json:"build_id,omitempty"`
}

// Task is one unit of queued work.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Queue      string    `json:"queue"`
	Args       TaskArgs  `json:"args"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Enqueuer submits tasks for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, task string, args TaskArgs, queueName string) error
}

// Handler executes a task. Errors classified as retryable are redelivered
// according to the queue's retry policy.
type Handler func(ctx context.Context, task *Task) error

// Route returns a Handler dispatching by task name. Unknown names fail without retry.
func Route(handlers map[string]Handler) Handler {
	return func(ctx context.Context, task *Task) error {
		h, ok := handlers[task.Name]
		if !ok {
			return ferrors.ValidationError(fmt.Sprintf("no handler for task %q", task.Name)).
				WithContext("task", task.Name).
				Build()
		}
		return h(ctx, task)
	}
}
