package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	MaxCheckpoints    int
	MaxJournalEntries int
	Logger            log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.MaxCheckpoints <= 0 {
		c.MaxCheckpoints = 10
	}
	if c.MaxJournalEntries <= 0 {
		c.MaxJournalEntries = 100
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of the storage repositories.
// Handy for tests and throwaway runs, state is lost on exit.
type Repository struct {
	tasks             []model.Task
	nextTaskID        int64
	checkpoints       []model.Checkpoint
	journal           []model.JournalEntry
	maxCheckpoints    int
	maxJournalEntries int
	mu                sync.RWMutex
	logger            log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		nextTaskID:        1,
		maxCheckpoints:    cfg.MaxCheckpoints,
		maxJournalEntries: cfg.MaxJournalEntries,
		logger:            cfg.Logger,
	}, nil
}

// CreateTask appends a new pending task and returns its assigned ID.
func (r *Repository) CreateTask(ctx context.Context, kind model.TaskKind, input string) (int64, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task := model.Task{
		ID:        r.nextTaskID,
		Kind:      kind,
		Input:     input,
		Status:    model.TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	r.nextTaskID++
	r.tasks = append(r.tasks, task)

	r.logger.Debugf("Created task #%d (%s)", task.ID, kind)
	return task.ID, nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, task := range r.tasks {
		if task.ID == id {
			taskCopy := task
			return &taskCopy, nil
		}
	}

	return nil, fmt.Errorf("task %d: %w", id, model.ErrNotFound)
}

// NextPendingTask returns the oldest pending task, or nil if none.
func (r *Repository) NextPendingTask(ctx context.Context) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Tasks are stored in insertion order, which is creation order.
	for _, task := range r.tasks {
		if task.Status == model.TaskStatusPending {
			taskCopy := task
			return &taskCopy, nil
		}
	}

	return nil, nil
}

// MarkTaskRunning transitions a pending task to running.
func (r *Repository) MarkTaskRunning(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return r.updateTask(id, model.TaskStatusPending, func(t *model.Task) {
		t.Status = model.TaskStatusRunning
		t.StartedAt = &now
	})
}

// MarkTaskCompleted transitions a running task to completed.
func (r *Repository) MarkTaskCompleted(ctx context.Context, id int64, result string) error {
	now := time.Now().UTC()
	return r.updateTask(id, model.TaskStatusRunning, func(t *model.Task) {
		t.Status = model.TaskStatusCompleted
		t.Result = result
		t.CompletedAt = &now
	})
}

// MarkTaskFailed transitions a running task to failed.
func (r *Repository) MarkTaskFailed(ctx context.Context, id int64, taskErr error) error {
	now := time.Now().UTC()
	errMsg := ""
	if taskErr != nil {
		errMsg = taskErr.Error()
	}
	return r.updateTask(id, model.TaskStatusRunning, func(t *model.Task) {
		t.Status = model.TaskStatusFailed
		t.Error = errMsg
		t.CompletedAt = &now
	})
}

// UpdateTaskProgress replaces the task's progress line.
func (r *Repository) UpdateTaskProgress(ctx context.Context, id int64, progress string) error {
	return r.updateTask(id, "", func(t *model.Task) {
		t.Progress = progress
	})
}

// ListTasks returns tasks newest first, optionally filtered by status.
func (r *Repository) ListTasks(ctx context.Context, status *model.TaskStatus, limit int) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.tasks))
	for i := len(r.tasks) - 1; i >= 0; i-- {
		task := r.tasks[i]
		if status != nil && task.Status != *status {
			continue
		}
		tasks = append(tasks, task)
		if len(tasks) >= limit {
			break
		}
	}

	return tasks, nil
}

// CountTasksByStatus returns how many tasks have the given status.
func (r *Repository) CountTasksByStatus(ctx context.Context, status model.TaskStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, task := range r.tasks {
		if task.Status == status {
			count++
		}
	}

	return count, nil
}

func (r *Repository) updateTask(id int64, requiredStatus model.TaskStatus, mutate func(*model.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tasks {
		if r.tasks[i].ID != id {
			continue
		}
		if requiredStatus != "" && r.tasks[i].Status != requiredStatus {
			return fmt.Errorf("task %d: %w", id, model.ErrNotFound)
		}
		mutate(&r.tasks[i])
		return nil
	}

	return fmt.Errorf("task %d: %w", id, model.ErrNotFound)
}

// SaveCheckpoint stores a new checkpoint and returns its ID.
func (r *Repository) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) (string, error) {
	if cp.Objective == "" {
		return "", fmt.Errorf("objective is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	r.checkpoints = append(r.checkpoints, cp)
	r.sortCheckpointsLocked()
	if len(r.checkpoints) > r.maxCheckpoints {
		r.checkpoints = r.checkpoints[:r.maxCheckpoints]
	}

	r.logger.Debugf("Saved checkpoint %s (objective %q)", cp.ID, cp.Objective)
	return cp.ID, nil
}

// LatestCheckpoint returns the newest checkpoint, scoped to an objective
// when it is not empty, or nil when there is none.
func (r *Repository) LatestCheckpoint(ctx context.Context, objective string) (*model.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cp := range r.checkpoints {
		if objective == "" || cp.Objective == objective {
			cpCopy := cp
			return &cpCopy, nil
		}
	}

	return nil, nil
}

// ListCheckpoints returns all checkpoints newest first.
func (r *Repository) ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checkpoints := make([]model.Checkpoint, len(r.checkpoints))
	copy(checkpoints, r.checkpoints)

	return checkpoints, nil
}

func (r *Repository) sortCheckpointsLocked() {
	sort.SliceStable(r.checkpoints, func(i, j int) bool {
		if !r.checkpoints[i].CreatedAt.Equal(r.checkpoints[j].CreatedAt) {
			return r.checkpoints[i].CreatedAt.After(r.checkpoints[j].CreatedAt)
		}
		return r.checkpoints[i].Iteration > r.checkpoints[j].Iteration
	})
}

// CreateEntry stores a new journal entry.
func (r *Repository) CreateEntry(ctx context.Context, e model.JournalEntry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.journal {
		if existing.ID == e.ID {
			return fmt.Errorf("journal entry %s: %w", e.ID, model.ErrAlreadyExists)
		}
	}

	// Newest first.
	r.journal = append([]model.JournalEntry{e}, r.journal...)
	if len(r.journal) > r.maxJournalEntries {
		r.journal = r.journal[:r.maxJournalEntries]
	}

	return nil
}

// UpdateEntry replaces an existing entry's mutable fields.
func (r *Repository) UpdateEntry(ctx context.Context, e model.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.journal {
		if r.journal[i].ID == e.ID {
			r.journal[i].Solution = e.Solution
			r.journal[i].Occurrences = e.Occurrences
			r.journal[i].LastSeenAt = e.LastSeenAt
			return nil
		}
	}

	return fmt.Errorf("journal entry %s: %w", e.ID, model.ErrNotFound)
}

// ListEntries returns all entries newest first.
func (r *Repository) ListEntries(ctx context.Context) ([]model.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]model.JournalEntry, len(r.journal))
	copy(entries, r.journal)

	return entries, nil
}
