package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/storage/sqlite"
)

func getTestCheckpointRepository(t *testing.T, maxCheckpoints int) *sqlite.CheckpointRepository {
	t.Helper()

	repo, err := sqlite.NewCheckpointRepository(sqlite.CheckpointRepositoryConfig{
		DB:             getTestDB(t),
		MaxCheckpoints: maxCheckpoints,
		Logger:         log.Noop,
	})
	require.NoError(t, err)

	return repo
}

func TestSaveCheckpointRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestCheckpointRepository(t, 0)
	ctx := context.Background()

	cp := model.Checkpoint{
		Objective:      "build a todo app",
		Iteration:      3,
		CompletedSteps: []string{"Analyze requirements", "Design architecture"},
		PendingSteps:   []string{"Implement core features"},
		Metadata:       map[string]string{"sub_project": "Main Project"},
	}

	id, err := repo.SaveCheckpoint(ctx, cp)
	require.NoError(err)
	assert.NotEmpty(id)

	got, err := repo.LatestCheckpoint(ctx, "")
	require.NoError(err)
	require.NotNil(got)
	assert.Equal(id, got.ID)
	assert.Equal(cp.Objective, got.Objective)
	assert.Equal(cp.Iteration, got.Iteration)
	assert.Equal(cp.CompletedSteps, got.CompletedSteps)
	assert.Equal(cp.PendingSteps, got.PendingSteps)
	assert.Equal(cp.Metadata, got.Metadata)
	assert.False(got.CreatedAt.IsZero())
}

func TestSaveCheckpointRequiresObjective(t *testing.T) {
	repo := getTestCheckpointRepository(t, 0)

	_, err := repo.SaveCheckpoint(context.Background(), model.Checkpoint{})

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestLatestCheckpointScopedToObjective(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestCheckpointRepository(t, 0)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	_, err := repo.SaveCheckpoint(ctx, model.Checkpoint{Objective: "objective-a", Iteration: 1, CreatedAt: base})
	require.NoError(err)
	_, err = repo.SaveCheckpoint(ctx, model.Checkpoint{Objective: "objective-b", Iteration: 1, CreatedAt: base.Add(time.Minute)})
	require.NoError(err)
	_, err = repo.SaveCheckpoint(ctx, model.Checkpoint{Objective: "objective-a", Iteration: 2, CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(err)

	// Unscoped returns the global newest.
	got, err := repo.LatestCheckpoint(ctx, "")
	require.NoError(err)
	require.NotNil(got)
	assert.Equal("objective-a", got.Objective)
	assert.Equal(2, got.Iteration)

	// Scoped returns the newest for that objective.
	got, err = repo.LatestCheckpoint(ctx, "objective-b")
	require.NoError(err)
	require.NotNil(got)
	assert.Equal("objective-b", got.Objective)

	// An unknown objective has no checkpoint.
	got, err = repo.LatestCheckpoint(ctx, "objective-z")
	require.NoError(err)
	assert.Nil(got)
}

func TestCheckpointPruning(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestCheckpointRepository(t, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		_, err := repo.SaveCheckpoint(ctx, model.Checkpoint{
			Objective: "long objective",
			Iteration: i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(err)
	}

	checkpoints, err := repo.ListCheckpoints(ctx)
	require.NoError(err)

	// Only the newest three survive, newest first.
	require.Len(checkpoints, 3)
	assert.Equal(5, checkpoints[0].Iteration)
	assert.Equal(4, checkpoints[1].Iteration)
	assert.Equal(3, checkpoints[2].Iteration)
}

func TestListCheckpointsEmpty(t *testing.T) {
	repo := getTestCheckpointRepository(t, 0)

	checkpoints, err := repo.ListCheckpoints(context.Background())

	require.NoError(t, err)
	assert.Empty(t, checkpoints)
}

func TestSaveCheckpointKeepsExplicitID(t *testing.T) {
	require := require.New(t)

	repo := getTestCheckpointRepository(t, 0)
	ctx := context.Background()

	id, err := repo.SaveCheckpoint(ctx, model.Checkpoint{
		ID:        "01JZZZZZZZZZZZZZZZZZZZZZZZ",
		Objective: "objective",
	})
	require.NoError(err)
	require.Equal("01JZZZZZZZZZZZZZZZZZZZZZZZ", id)
}
