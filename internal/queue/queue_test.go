package queue_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/queue"
	"github.com/urko/taskmill/internal/storage/memory"
	"github.com/urko/taskmill/internal/storage/storagemock"
)

func getTestRepository(t *testing.T) *memory.Repository {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	return repo
}

func getTestService(t *testing.T, repo *memory.Repository) *queue.Service {
	t.Helper()

	svc, err := queue.NewService(queue.ServiceConfig{Repository: repo})
	require.NoError(t, err)

	return svc
}

func TestEnqueue(t *testing.T) {
	tests := map[string]struct {
		kind   model.TaskKind
		input  string
		expErr bool
	}{
		"A valid autonomous task should enqueue": {
			kind:  model.TaskKindAutonomous,
			input: "Build a todo app",
		},
		"A valid research task should enqueue": {
			kind:  model.TaskKindResearch,
			input: "Compare queue libraries",
		},
		"An unknown kind should fail": {
			kind:   model.TaskKind("juggling"),
			input:  "whatever",
			expErr: true,
		},
		"Empty input should fail": {
			kind:   model.TaskKindBuild,
			input:  "",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			svc := getTestService(t, getTestRepository(t))

			id, err := svc.Enqueue(context.Background(), test.kind, test.input)

			if test.expErr {
				assert.Error(err)
				assert.ErrorIs(err, model.ErrNotValid)
				return
			}

			require.NoError(t, err)
			assert.Greater(id, int64(0))

			task, err := svc.Status(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(test.kind, task.Kind)
			assert.Equal(test.input, task.Input)
			assert.Equal(model.TaskStatusPending, task.Status)
		})
	}
}

func TestEnqueueRepositoryError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mr := &storagemock.MockTaskRepository{}
	mr.On("CreateTask", mock.Anything, model.TaskKindBuild, "payload").Return(int64(0), fmt.Errorf("disk full"))

	svc, err := queue.NewService(queue.ServiceConfig{Repository: mr})
	require.NoError(err)

	_, err = svc.Enqueue(context.Background(), model.TaskKindBuild, "payload")

	require.Error(err)
	assert.Contains(err.Error(), "could not create task")
	assert.Contains(err.Error(), "disk full")
	mr.AssertExpectations(t)
}

func TestQueueStatusRepositoryError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mr := &storagemock.MockTaskRepository{}
	mr.On("CountTasksByStatus", mock.Anything, model.TaskStatusPending).Return(0, fmt.Errorf("database locked"))

	svc, err := queue.NewService(queue.ServiceConfig{Repository: mr})
	require.NoError(err)

	_, err = svc.QueueStatus(context.Background())

	require.Error(err)
	assert.Contains(err.Error(), "could not count pending tasks")
	assert.Contains(err.Error(), "database locked")
	mr.AssertExpectations(t)
}

func TestStatusUnknownTask(t *testing.T) {
	svc := getTestService(t, getTestRepository(t))

	_, err := svc.Status(context.Background(), 999)

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestList(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	id1, err := svc.Enqueue(ctx, model.TaskKindBuild, "first")
	require.NoError(err)
	id2, err := svc.Enqueue(ctx, model.TaskKindBuild, "second")
	require.NoError(err)
	require.NoError(repo.MarkTaskRunning(ctx, id1))

	// Newest first.
	all, err := svc.List(ctx, nil, 0)
	require.NoError(err)
	require.Len(all, 2)
	assert.Equal(id2, all[0].ID)
	assert.Equal(id1, all[1].ID)

	// Status filter.
	running := model.TaskStatusRunning
	filtered, err := svc.List(ctx, &running, 0)
	require.NoError(err)
	require.Len(filtered, 1)
	assert.Equal(id1, filtered[0].ID)

	// Limit.
	limited, err := svc.List(ctx, nil, 1)
	require.NoError(err)
	assert.Len(limited, 1)
}

func TestQueueStatus(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepository(t)
	svc := getTestService(t, repo)
	ctx := context.Background()

	// Empty queue.
	status, err := svc.QueueStatus(ctx)
	require.NoError(err)
	assert.Equal(0, status.Pending)
	assert.False(status.Busy)
	assert.Nil(status.CurrentTaskID)

	// Two pending, one running.
	id1, err := svc.Enqueue(ctx, model.TaskKindBuild, "one")
	require.NoError(err)
	_, err = svc.Enqueue(ctx, model.TaskKindBuild, "two")
	require.NoError(err)
	_, err = svc.Enqueue(ctx, model.TaskKindBuild, "three")
	require.NoError(err)
	require.NoError(repo.MarkTaskRunning(ctx, id1))

	status, err = svc.QueueStatus(ctx)
	require.NoError(err)
	assert.Equal(2, status.Pending)
	assert.True(status.Busy)
	require.NotNil(status.CurrentTaskID)
	assert.Equal(id1, *status.CurrentTaskID)
	assert.Len(status.RecentTasks, 3)
}
