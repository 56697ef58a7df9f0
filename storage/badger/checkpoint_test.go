package badger

import (
	"context"
	"testing"

	"github.com/poiesic/sift/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRepository(t *testing.T) {
	_, checkpointRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	loaded, err := checkpointRepo.LoadCheckpoint(ctx, "reindex")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	err = checkpointRepo.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reindex", LastID: 42})
	require.NoError(t, err)

	loaded, err = checkpointRepo.LoadCheckpoint(ctx, "reindex")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, core.ID(42), loaded.LastID)
	assert.False(t, loaded.UpdatedAt.IsZero())

	other, err := checkpointRepo.LoadCheckpoint(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestCheckpointOverwriteAndDelete(t *testing.T) {
	_, checkpointRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, checkpointRepo.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reindex", LastID: 1}))
	require.NoError(t, checkpointRepo.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: "reindex", LastID: 9}))

	loaded, err := checkpointRepo.LoadCheckpoint(ctx, "reindex")
	require.NoError(t, err)
	assert.Equal(t, core.ID(9), loaded.LastID)

	require.NoError(t, checkpointRepo.DeleteCheckpoint(ctx, "reindex"))
	loaded, err = checkpointRepo.LoadCheckpoint(ctx, "reindex")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	assert.NoError(t, checkpointRepo.DeleteCheckpoint(ctx, "never-saved"))
}

func TestSaveCheckpoint_RequiresProcessorType(t *testing.T) {
	_, checkpointRepo, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	err = checkpointRepo.SaveCheckpoint(context.Background(), &core.Checkpoint{LastID: 3})
	assert.ErrorIs(t, err, core.ErrInvalidQuery)

	err = checkpointRepo.SaveCheckpoint(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}
