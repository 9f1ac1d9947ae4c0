package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/storage"
)

const (
	// DefaultPollInterval is how long the worker sleeps between polls when
	// the queue is empty. A few seconds of latency buys a queue that is
	// re-derivable purely from persisted state after a crash.
	DefaultPollInterval = 5 * time.Second
	// DefaultStopTimeout bounds how long Stop waits for the in-flight task.
	DefaultStopTimeout = 2 * time.Minute
)

// Executor runs one task. The returned string becomes the task's result,
// an error marks the task failed. Progress updates go through the callback.
type Executor func(ctx context.Context, kind model.TaskKind, input string, progress func(string)) (string, error)

// WorkerConfig is the configuration for the queue worker.
type WorkerConfig struct {
	Repository   storage.TaskRepository
	Executor     Executor
	PollInterval time.Duration
	StopTimeout  time.Duration
	Logger       log.Logger
}

func (c *WorkerConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "queue.Worker"})
	return nil
}

// Worker is the single background loop draining the task queue in strict
// creation order. Only one task executes at a time, which keeps failure
// attribution unambiguous and avoids contention on the reasoning endpoint.
type Worker struct {
	repository   storage.TaskRepository
	executor     Executor
	pollInterval time.Duration
	stopTimeout  time.Duration
	logger       log.Logger

	mu      sync.Mutex
	started bool
	stopC   chan struct{}
	doneC   chan struct{}
}

// NewWorker creates a new queue worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		repository:   cfg.Repository,
		executor:     cfg.Executor,
		pollInterval: cfg.PollInterval,
		stopTimeout:  cfg.StopTimeout,
		logger:       cfg.Logger,
	}, nil
}

// Start launches the worker loop. Idempotent, a second call is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}
	w.started = true
	w.stopC = make(chan struct{})
	w.doneC = make(chan struct{})

	go w.run(ctx, w.stopC, w.doneC)

	w.logger.Infof("Worker started (poll interval %s)", w.pollInterval)
	return nil
}

// Stop signals the worker to stop and waits, bounded, for the in-flight
// task to finish. Cooperative: it never interrupts a running task.
// Idempotent, stopping a stopped worker is a no-op.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	close(w.stopC)
	doneC := w.doneC
	w.mu.Unlock()

	select {
	case <-doneC:
		w.logger.Infof("Worker stopped")
		return nil
	case <-time.After(w.stopTimeout):
		return fmt.Errorf("worker did not stop within %s", w.stopTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context, stopC, doneC chan struct{}) {
	defer close(doneC)

	for {
		select {
		case <-stopC:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.repository.NextPendingTask(ctx)
		if err != nil {
			w.logger.Errorf("Could not poll for pending tasks: %s", err)
			if !w.sleep(ctx, stopC) {
				return
			}
			continue
		}

		if task == nil {
			if !w.sleep(ctx, stopC) {
				return
			}
			continue
		}

		w.process(ctx, task)
	}
}

// sleep waits one poll interval, returning false when the worker should
// exit instead of polling again.
func (w *Worker) sleep(ctx context.Context, stopC chan struct{}) bool {
	select {
	case <-time.After(w.pollInterval):
		return true
	case <-stopC:
		return false
	case <-ctx.Done():
		return false
	}
}

// process runs one task end to end. An executor error is terminal for the
// task, there is no automatic re-queue: retries live inside the executor.
func (w *Worker) process(ctx context.Context, task *model.Task) {
	logger := w.logger.WithValues(log.Kv{"task-id": task.ID, "kind": task.Kind})

	if err := w.repository.MarkTaskRunning(ctx, task.ID); err != nil {
		logger.Errorf("Could not mark task running: %s", err)
		return
	}
	logger.Infof("Task started")

	progress := func(line string) {
		if err := w.repository.UpdateTaskProgress(ctx, task.ID, line); err != nil {
			logger.Warningf("Could not update task progress: %s", err)
		}
	}

	result, err := w.executor(ctx, task.Kind, task.Input, progress)
	if err != nil {
		if markErr := w.repository.MarkTaskFailed(ctx, task.ID, err); markErr != nil {
			logger.Errorf("Could not mark task failed: %s", markErr)
		}
		logger.Errorf("Task failed: %s", err)
		return
	}

	if err := w.repository.MarkTaskCompleted(ctx, task.ID, result); err != nil {
		logger.Errorf("Could not mark task completed: %s", err)
		return
	}
	logger.Infof("Task completed")
}
