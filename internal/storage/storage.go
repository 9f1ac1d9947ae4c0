package storage

import (
	"context"

	"github.com/urko/taskmill/internal/model"
)

// TaskRepository is the interface for task queue persistence.
//
// The queue is re-derivable purely from this state after a restart: there
// is no in-memory queue structure to lose.
type TaskRepository interface {
	// CreateTask appends a new pending task and returns its assigned ID.
	CreateTask(ctx context.Context, kind model.TaskKind, input string) (int64, error)
	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	// NextPendingTask returns the oldest pending task, or nil if none.
	NextPendingTask(ctx context.Context) (*model.Task, error)
	// MarkTaskRunning transitions a task to running and records the start time.
	MarkTaskRunning(ctx context.Context, id int64) error
	// MarkTaskCompleted transitions a task to completed with its result.
	MarkTaskCompleted(ctx context.Context, id int64, result string) error
	// MarkTaskFailed transitions a task to failed with an error message.
	MarkTaskFailed(ctx context.Context, id int64, taskErr error) error
	// UpdateTaskProgress replaces the task's progress line.
	UpdateTaskProgress(ctx context.Context, id int64, progress string) error
	// ListTasks returns tasks newest first, optionally filtered by status.
	ListTasks(ctx context.Context, status *model.TaskStatus, limit int) ([]model.Task, error)
	// CountTasksByStatus returns how many tasks have the given status.
	CountTasksByStatus(ctx context.Context, status model.TaskStatus) (int, error)
}

// CheckpointRepository is the interface for checkpoint persistence.
// Checkpoints are immutable and additive.
type CheckpointRepository interface {
	// SaveCheckpoint stores a new checkpoint and returns its ID.
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) (string, error)
	// LatestCheckpoint returns the newest checkpoint, scoped to an
	// objective when it is not empty, or nil when there is none.
	LatestCheckpoint(ctx context.Context, objective string) (*model.Checkpoint, error)
	// ListCheckpoints returns all checkpoints newest first.
	ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error)
}

// JournalRepository is the interface for error journal persistence.
// Implementations keep a bounded ring of the most recent entries.
type JournalRepository interface {
	// CreateEntry stores a new journal entry.
	CreateEntry(ctx context.Context, e model.JournalEntry) error
	// UpdateEntry replaces an existing entry (occurrences, solution).
	UpdateEntry(ctx context.Context, e model.JournalEntry) error
	// ListEntries returns all entries newest first.
	ListEntries(ctx context.Context) ([]model.JournalEntry, error)
}
