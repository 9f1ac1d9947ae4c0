// Package storagemock has testify mocks for the storage repositories.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/urko/taskmill/internal/model"
)

// MockTaskRepository is a mock of storage.TaskRepository.
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, kind model.TaskKind, input string) (int64, error) {
	args := m.Called(ctx, kind, input)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) NextPendingTask(ctx context.Context) (*model.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) MarkTaskRunning(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) MarkTaskCompleted(ctx context.Context, id int64, result string) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockTaskRepository) MarkTaskFailed(ctx context.Context, id int64, taskErr error) error {
	args := m.Called(ctx, id, taskErr)
	return args.Error(0)
}

func (m *MockTaskRepository) UpdateTaskProgress(ctx context.Context, id int64, progress string) error {
	args := m.Called(ctx, id, progress)
	return args.Error(0)
}

func (m *MockTaskRepository) ListTasks(ctx context.Context, status *model.TaskStatus, limit int) ([]model.Task, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) CountTasksByStatus(ctx context.Context, status model.TaskStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

// MockCheckpointRepository is a mock of storage.CheckpointRepository.
type MockCheckpointRepository struct {
	mock.Mock
}

func (m *MockCheckpointRepository) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) (string, error) {
	args := m.Called(ctx, cp)
	return args.String(0), args.Error(1)
}

func (m *MockCheckpointRepository) LatestCheckpoint(ctx context.Context, objective string) (*model.Checkpoint, error) {
	args := m.Called(ctx, objective)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Checkpoint), args.Error(1)
}

func (m *MockCheckpointRepository) ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Checkpoint), args.Error(1)
}

// MockJournalRepository is a mock of storage.JournalRepository.
type MockJournalRepository struct {
	mock.Mock
}

func (m *MockJournalRepository) CreateEntry(ctx context.Context, e model.JournalEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockJournalRepository) UpdateEntry(ctx context.Context, e model.JournalEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockJournalRepository) ListEntries(ctx context.Context) ([]model.JournalEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.JournalEntry), args.Error(1)
}
