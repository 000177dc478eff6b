package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/astsim/domain"
)

func newTestBatchService(t *testing.T) (*BatchService, *WorkerPool) {
	t.Helper()
	store := newTestStore(t)
	putSubmission(t, store, 1, 10, 1, sumDoc(1, "sum"))
	putSubmission(t, store, 1, 20, 2, sumDoc(5, "acc"))
	putSubmission(t, store, 1, 30, 3, literalDoc())
	putSubmission(t, store, 1, 40, 4, nil)

	svc := newTestService(t, store, nil, nil)
	pool := NewWorkerPool(2, 8, discardLogger())
	t.Cleanup(pool.Close)
	runner := NewTaskRunner(pool, svc, store, discardLogger())
	return NewBatchService(runner, svc, store), pool
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 3, 7}, normalizeIDs([]int64{7, 3, -1, 0, 3, 1}))
	assert.Equal(t, []int64{}, normalizeIDs([]int64{0, -4}))
}

func TestBatchService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("single id expands to the later submissions", func(t *testing.T) {
		batch, pool := newTestBatchService(t)
		resp, err := batch.Start(ctx, 1, []int64{1})
		require.NoError(t, err)
		assert.True(t, resp.Accepted)
		assert.Equal(t, 1, resp.RequestedCount)
		assert.Equal(t, []int64{1, 2}, resp.StartedSubmissionIDs)
		assert.Equal(t, 2, resp.StartedCount)

		pool.Close()
		status, err := batch.Status(ctx, 1, []int64{1})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, status.Status)
		assert.Equal(t, 3, status.Total)
		assert.Equal(t, 3, status.Done)
		assert.Equal(t, 2, status.Skipped)
		require.Len(t, status.PerSubmissions, 2)
		assert.Equal(t, int64(2), status.PerSubmissions[1].SubmissionID)
	})

	t.Run("explicit ids are normalized", func(t *testing.T) {
		batch, pool := newTestBatchService(t)
		resp, err := batch.Start(ctx, 1, []int64{3, -1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 4, resp.RequestedCount)
		assert.Equal(t, []int64{2, 3}, resp.StartedSubmissionIDs)
		pool.Close()
	})

	t.Run("last submission starts nothing", func(t *testing.T) {
		batch, _ := newTestBatchService(t)
		resp, err := batch.Start(ctx, 1, []int64{3})
		require.NoError(t, err)
		assert.Equal(t, []int64{}, resp.StartedSubmissionIDs)
		assert.Zero(t, resp.StartedCount)
	})

	t.Run("empty request", func(t *testing.T) {
		batch, _ := newTestBatchService(t)
		_, err := batch.Start(ctx, 1, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		_, err = batch.Start(ctx, 1, []int64{0})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("unknown submission", func(t *testing.T) {
		batch, _ := newTestBatchService(t)
		_, err := batch.Start(ctx, 1, []int64{1, 99})
		assert.True(t, errors.Is(err, domain.ErrSubmissionNotFound))
	})
}

func TestBatchService_StatusAggregation(t *testing.T) {
	ctx := context.Background()
	batch, _ := newTestBatchService(t)

	status, err := batch.Status(ctx, 1, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, status.Status)

	batch.similarity.Registry().MarkError(RuntimeKey{AssignmentID: 1, StudentID: 20, SubmissionID: 2})
	status, err = batch.Status(ctx, 1, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, status.Status)
	assert.Equal(t, domain.StatusReady, status.PerSubmissions[0].Status)
	assert.Equal(t, domain.StatusError, status.PerSubmissions[1].Status)
}

func TestTaskRunner_RunBatch(t *testing.T) {
	store := newTestStore(t)
	putSubmission(t, store, 1, 10, 1, sumDoc(1, "sum"))
	putSubmission(t, store, 1, 20, 2, sumDoc(1, "sum"))

	publisher := &recordingPublisher{}
	svc := newTestService(t, store, publisher, nil)
	pool := NewWorkerPool(1, 1, discardLogger())
	runner := NewTaskRunner(pool, svc, store, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, runner.RunBatch(ctx, domain.BatchMessage{GroupID: "g", AssignmentID: 1, SubmissionIDs: []int64{1, 2}}))
	cancel()
	pool.Close()

	require.Len(t, publisher.completed, 1, "the batch outlives the request context")
	assert.Error(t, runner.RunBatch(context.Background(), domain.BatchMessage{}))
}
