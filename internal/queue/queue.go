// Package queue is the durable task queue: enqueue work, poll its status,
// let the single background worker drain it.
package queue

import (
	"context"
	"fmt"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/storage"
)

// ServiceConfig is the configuration for the queue service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "queue.Service"})
	return nil
}

// Service is the caller-facing side of the task queue. Enqueue never
// blocks on worker availability, status reads are point-in-time polls.
type Service struct {
	repository storage.TaskRepository
	logger     log.Logger
}

// NewService creates a new queue service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repository: cfg.Repository,
		logger:     cfg.Logger,
	}, nil
}

// Enqueue appends a new pending task and returns its assigned ID.
func (s *Service) Enqueue(ctx context.Context, kind model.TaskKind, input string) (int64, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	if input == "" {
		return 0, fmt.Errorf("task input is required: %w", model.ErrNotValid)
	}

	id, err := s.repository.CreateTask(ctx, kind, input)
	if err != nil {
		return 0, fmt.Errorf("could not create task: %w", err)
	}

	s.logger.Infof("Enqueued task #%d (%s)", id, kind)
	return id, nil
}

// Status returns a point-in-time read of one task.
func (s *Service) Status(ctx context.Context, id int64) (*model.Task, error) {
	task, err := s.repository.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}
	return task, nil
}

// List returns tasks newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *model.TaskStatus, limit int) ([]model.Task, error) {
	if limit <= 0 {
		limit = 20
	}

	tasks, err := s.repository.ListTasks(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	return tasks, nil
}

// QueueStatus summarizes the queue: pending count, whether the worker is
// busy and with what, and the most recent tasks.
func (s *Service) QueueStatus(ctx context.Context) (model.QueueStatus, error) {
	pending, err := s.repository.CountTasksByStatus(ctx, model.TaskStatusPending)
	if err != nil {
		return model.QueueStatus{}, fmt.Errorf("could not count pending tasks: %w", err)
	}

	running := model.TaskStatusRunning
	runningTasks, err := s.repository.ListTasks(ctx, &running, 1)
	if err != nil {
		return model.QueueStatus{}, fmt.Errorf("could not list running tasks: %w", err)
	}

	recent, err := s.repository.ListTasks(ctx, nil, 5)
	if err != nil {
		return model.QueueStatus{}, fmt.Errorf("could not list recent tasks: %w", err)
	}

	status := model.QueueStatus{
		Pending:     pending,
		Busy:        len(runningTasks) > 0,
		RecentTasks: recent,
	}
	if status.Busy {
		status.CurrentTaskID = &runningTasks[0].ID
	}

	return status, nil
}
