package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/queue"
	"github.com/urko/taskmill/internal/storage/memory"
)

func waitForStatus(t *testing.T, repo *memory.Repository, id int64, status model.TaskStatus) *model.Task {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		task, err := repo.GetTask(context.Background(), id)
		require.NoError(t, err)
		if task.Status == status {
			return task
		}

		select {
		case <-deadline:
			t.Fatalf("task %d never reached status %q (last %q)", id, status, task.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorkerProcessesTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, model.TaskKindBuild, "build the thing")
	require.NoError(err)

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   repo,
		PollInterval: 10 * time.Millisecond,
		Executor: func(_ context.Context, kind model.TaskKind, input string, progress func(string)) (string, error) {
			progress("halfway there")
			return fmt.Sprintf("done: %s", input), nil
		},
	})
	require.NoError(err)

	require.NoError(worker.Start(ctx))
	t.Cleanup(func() { worker.Stop(context.Background()) })

	task := waitForStatus(t, repo, id, model.TaskStatusCompleted)
	assert.Equal("done: build the thing", task.Result)
	assert.Equal("halfway there", task.Progress)
	assert.NotNil(task.StartedAt)
	assert.NotNil(task.CompletedAt)
}

func TestWorkerMarksFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, model.TaskKindBuild, "doomed")
	require.NoError(err)

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   repo,
		PollInterval: 10 * time.Millisecond,
		Executor: func(_ context.Context, _ model.TaskKind, _ string, _ func(string)) (string, error) {
			return "", fmt.Errorf("no network")
		},
	})
	require.NoError(err)

	require.NoError(worker.Start(ctx))
	t.Cleanup(func() { worker.Stop(context.Background()) })

	task := waitForStatus(t, repo, id, model.TaskStatusFailed)
	assert.Contains(task.Error, "no network")
	assert.Empty(task.Result)
}

func TestWorkerDrainsInOrder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	inFlight := 0
	maxInFlight := 0

	var ids []int64
	for _, input := range []string{"first", "second", "third"} {
		id, err := svc.Enqueue(ctx, model.TaskKindBuild, input)
		require.NoError(err)
		ids = append(ids, id)
	}

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   repo,
		PollInterval: 10 * time.Millisecond,
		Executor: func(_ context.Context, _ model.TaskKind, input string, _ func(string)) (string, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			order = append(order, input)
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return "ok", nil
		},
	})
	require.NoError(err)

	require.NoError(worker.Start(ctx))
	t.Cleanup(func() { worker.Stop(context.Background()) })

	for _, id := range ids {
		waitForStatus(t, repo, id, model.TaskStatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal([]string{"first", "second", "third"}, order)
	assert.Equal(1, maxInFlight, "only one task should run at a time")
}

func TestWorkerPicksUpLateTask(t *testing.T) {
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   repo,
		PollInterval: 10 * time.Millisecond,
		Executor: func(_ context.Context, _ model.TaskKind, _ string, _ func(string)) (string, error) {
			return "ok", nil
		},
	})
	require.NoError(err)

	require.NoError(worker.Start(ctx))
	t.Cleanup(func() { worker.Stop(context.Background()) })

	// Enqueue after the worker is already polling an empty queue.
	time.Sleep(30 * time.Millisecond)
	id, err := svc.Enqueue(ctx, model.TaskKindBuild, "late arrival")
	require.NoError(err)

	waitForStatus(t, repo, id, model.TaskStatusCompleted)
}

func TestWorkerStartStopIdempotent(t *testing.T) {
	require := require.New(t)

	repo := getTestRepository(t)

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   repo,
		PollInterval: 10 * time.Millisecond,
		StopTimeout:  time.Second,
		Executor: func(_ context.Context, _ model.TaskKind, _ string, _ func(string)) (string, error) {
			return "ok", nil
		},
	})
	require.NoError(err)

	ctx := context.Background()
	require.NoError(worker.Start(ctx))
	require.NoError(worker.Start(ctx))

	require.NoError(worker.Stop(ctx))
	require.NoError(worker.Stop(ctx))
}

func TestWorkerStopWaitsForInFlightTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	startedC := make(chan struct{})
	id, err := svc.Enqueue(ctx, model.TaskKindBuild, "slow")
	require.NoError(err)

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   repo,
		PollInterval: 10 * time.Millisecond,
		StopTimeout:  2 * time.Second,
		Executor: func(_ context.Context, _ model.TaskKind, _ string, _ func(string)) (string, error) {
			close(startedC)
			time.Sleep(50 * time.Millisecond)
			return "finished", nil
		},
	})
	require.NoError(err)

	require.NoError(worker.Start(ctx))
	<-startedC

	require.NoError(worker.Stop(ctx))

	task, err := repo.GetTask(ctx, id)
	require.NoError(err)
	assert.Equal(model.TaskStatusCompleted, task.Status)
}
