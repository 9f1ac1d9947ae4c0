package model

import (
	"fmt"
	"time"
)

// TaskStatus represents the state of a queued task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskKind represents the type of work a queued task carries.
type TaskKind string

const (
	// TaskKindAutonomous runs the full research, build and deploy pipeline.
	TaskKindAutonomous TaskKind = "autonomous"
	// TaskKindResearch runs a research-only pass.
	TaskKindResearch TaskKind = "research"
	// TaskKindBuild runs a build-only pass.
	TaskKindBuild TaskKind = "build"
	// TaskKindDeploy runs a deployment-only pass.
	TaskKindDeploy TaskKind = "deploy"
)

// Validate checks the kind is a known one.
func (k TaskKind) Validate() error {
	switch k {
	case TaskKindAutonomous, TaskKindResearch, TaskKindBuild, TaskKindDeploy:
		return nil
	}
	return fmt.Errorf("unknown task kind %q: %w", string(k), ErrNotValid)
}

// Task is a single unit of enqueued work.
//
// The ID is assigned by the repository at insert time and is immutable.
// Status only ever moves pending -> running -> completed|failed.
type Task struct {
	ID          int64
	Kind        TaskKind
	Input       string
	Status      TaskStatus
	Result      string
	Error       string
	Progress    string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// QueueStatus is a point-in-time summary of the queue.
type QueueStatus struct {
	Pending       int
	Busy          bool
	CurrentTaskID *int64
	RecentTasks   []Task
}
