package reindex

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	batches int
	docs    int
}

func (o *countingObserver) ObserveReindex(docs int) {
	o.batches++
	o.docs += docs
}

func testConfig(batchSize int) *Config {
	return &Config{
		BatchSize:      batchSize,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func TestNewReindexer_RequiresRepository(t *testing.T) {
	_, err := NewReindexer(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)
}

func TestNewReindexer_Defaults(t *testing.T) {
	repo, _ := setupTestRepositories(t)

	r, err := NewReindexer(repo, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReindexer_EmptyDatabase(t *testing.T) {
	repo, checkpoints := setupTestRepositories(t)
	var out bytes.Buffer

	r, err := NewReindexer(repo, checkpoints, testConfig(2), &out)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out.String(), "No documents found")

	checkpoint, err := checkpoints.LoadCheckpoint(context.Background(), ProcessorType)
	require.NoError(t, err)
	assert.Nil(t, checkpoint)
}

func TestReindexer_RebuildsEverything(t *testing.T) {
	repo, checkpoints := setupTestRepositories(t)
	ctx := context.Background()

	for id := core.ID(1); id <= 5; id++ {
		addStale(t, repo, &core.Document{Id: id, Title: "current", Filters: []string{"x"}}, "legacy")
	}

	var out bytes.Buffer
	observer := &countingObserver{}
	r, err := NewReindexer(repo, checkpoints, testConfig(2), &out, WithObserver(observer))
	require.NoError(t, err)

	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, observer.batches)
	assert.Equal(t, 5, observer.docs)

	ids, err := repo.FindByToken(ctx, "legacy")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = repo.FindByToken(ctx, "current")
	require.NoError(t, err)
	assert.Len(t, ids, 5)

	output := out.String()
	assert.Contains(t, output, "Starting reindex of 5 documents (batch size: 2)")
	assert.Contains(t, output, "5/5 (100.0%)")
	assert.Contains(t, output, "Reindex complete. Rebuilt 5 documents")

	checkpoint, err := checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	assert.Nil(t, checkpoint, "completed run clears the checkpoint")
}

func TestReindexer_ResumesFromCheckpoint(t *testing.T) {
	repo, checkpoints := setupTestRepositories(t)
	ctx := context.Background()
	seedDocuments(t, repo, 1, 2, 3, 4, 5, 6)

	// A previous run got as far as document 4.
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: ProcessorType, LastID: 4}))

	config := testConfig(10)
	config.Resume = true
	observer := &countingObserver{}
	r, err := NewReindexer(repo, checkpoints, config, nil, WithObserver(observer))
	require.NoError(t, err)

	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only documents after the checkpoint are rebuilt")

	checkpoint, err := checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	assert.Nil(t, checkpoint)
}

func TestReindexer_IgnoresCheckpointWithoutResume(t *testing.T) {
	repo, checkpoints := setupTestRepositories(t)
	ctx := context.Background()
	seedDocuments(t, repo, 1, 2, 3)
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: ProcessorType, LastID: 2}))

	r, err := NewReindexer(repo, checkpoints, testConfig(10), nil)
	require.NoError(t, err)

	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReindexer_SavesCheckpointPerBatch(t *testing.T) {
	repo, checkpoints := setupTestRepositories(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seedDocuments(t, repo, 1, 2, 3, 4, 5)

	cancelling := &cancelAfter{n: 2, cancel: cancel}
	r, err := NewReindexer(repo, checkpoints, testConfig(2), nil, WithObserver(cancelling))
	require.NoError(t, err)

	n, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, n)

	checkpoint, err := checkpoints.LoadCheckpoint(context.Background(), ProcessorType)
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, core.ID(4), checkpoint.LastID)
}

// cancelAfter cancels the run once n batches have been rebuilt.
type cancelAfter struct {
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) ObserveReindex(int) {
	c.calls++
	if c.calls == c.n {
		c.cancel()
	}
}

func TestReindexer_WithoutCheckpoints(t *testing.T) {
	repo, _ := setupTestRepositories(t)
	seedDocuments(t, repo, 1, 2, 3)

	config := testConfig(2)
	config.Resume = true
	r, err := NewReindexer(repo, nil, config, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
