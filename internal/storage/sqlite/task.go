package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
)

// TaskRepositoryConfig is the configuration for the SQLite task repository.
type TaskRepositoryConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.TaskRepository"})
	return nil
}

// TaskRepository is a SQLite implementation of storage.TaskRepository.
type TaskRepository struct {
	db     *sql.DB
	logger log.Logger
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

const taskColumns = `id, kind, input, status, result, error, progress, created_at, started_at, completed_at`

// CreateTask appends a new pending task and returns its assigned ID.
func (r *TaskRepository) CreateTask(ctx context.Context, kind model.TaskKind, input string) (int64, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO tasks (kind, input, status, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, kind, input, model.TaskStatusPending, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("could not insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("could not get inserted task id: %w", err)
	}

	r.logger.Debugf("Created task #%d (%s)", id, kind)
	return id, nil
}

// GetTask retrieves a task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = ?`, taskColumns)

	task, err := r.scanRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &task, nil
}

// NextPendingTask returns the oldest pending task, or nil if none.
// Strict creation order: there is no priority field.
func (r *TaskRepository) NextPendingTask(ctx context.Context) (*model.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, taskColumns)

	task, err := r.scanRow(r.db.QueryRowContext(ctx, query, model.TaskStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No pending tasks.
		}
		return nil, fmt.Errorf("could not query next pending task: %w", err)
	}

	return &task, nil
}

// MarkTaskRunning transitions a pending task to running.
func (r *TaskRepository) MarkTaskRunning(ctx context.Context, id int64) error {
	query := `UPDATE tasks SET status = ?, started_at = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, model.TaskStatusRunning, time.Now().UTC().Unix(), id, model.TaskStatusPending)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	if err := r.checkAffected(result, id); err != nil {
		return err
	}

	r.logger.Debugf("Task #%d running", id)
	return nil
}

// MarkTaskCompleted transitions a running task to completed.
func (r *TaskRepository) MarkTaskCompleted(ctx context.Context, id int64, taskResult string) error {
	query := `UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, model.TaskStatusCompleted, taskResult, time.Now().UTC().Unix(), id, model.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	if err := r.checkAffected(result, id); err != nil {
		return err
	}

	r.logger.Debugf("Task #%d completed", id)
	return nil
}

// MarkTaskFailed transitions a running task to failed.
func (r *TaskRepository) MarkTaskFailed(ctx context.Context, id int64, taskErr error) error {
	errMsg := ""
	if taskErr != nil {
		errMsg = taskErr.Error()
	}

	query := `UPDATE tasks SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, model.TaskStatusFailed, errMsg, time.Now().UTC().Unix(), id, model.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	if err := r.checkAffected(result, id); err != nil {
		return err
	}

	r.logger.Debugf("Task #%d failed: %s", id, errMsg)
	return nil
}

// UpdateTaskProgress replaces the task's progress line.
func (r *TaskRepository) UpdateTaskProgress(ctx context.Context, id int64, progress string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tasks SET progress = ? WHERE id = ?`, progress, id)
	if err != nil {
		return fmt.Errorf("could not update task progress: %w", err)
	}

	return r.checkAffected(result, id)
}

// ListTasks returns tasks newest first, optionally filtered by status.
func (r *TaskRepository) ListTasks(ctx context.Context, status *model.TaskStatus, limit int) ([]model.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks`, taskColumns)
	args := []any{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// CountTasksByStatus returns how many tasks have the given status.
func (r *TaskRepository) CountTasksByStatus(ctx context.Context, status model.TaskStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("could not count tasks: %w", err)
	}

	return count, nil
}

func (r *TaskRepository) checkAffected(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, model.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *TaskRepository) scanRow(s scanner) (model.Task, error) {
	var task model.Task
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	err := s.Scan(
		&task.ID,
		&task.Kind,
		&task.Input,
		&task.Status,
		&task.Result,
		&task.Error,
		&task.Progress,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	task.CreatedAt = timeFromUnix(createdAt)
	if startedAt.Valid {
		t := timeFromUnix(startedAt.Int64)
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := timeFromUnix(completedAt.Int64)
		task.CompletedAt = &t
	}

	return task, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
