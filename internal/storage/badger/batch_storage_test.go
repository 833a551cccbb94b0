package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/lectio/internal/models"
)

func newTestStorage(t *testing.T) *BatchStorage {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewBatchStorage(db, arbor.NewLogger())
}

func newStoredBatch(t *testing.T, s *BatchStorage) *models.Batch {
	t.Helper()
	batch := models.NewBatch("job-1", []models.DocumentRef{{Job: "job-1", Path: "page.tif"}})
	batch.AddStage(models.TaskSpec{Kind: "ocr.tesseract"})
	require.NoError(t, s.SaveBatch(context.Background(), batch))
	return batch
}

func TestBatchStorageSaveGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	batch := newStoredBatch(t, s)

	got, err := s.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, got.ID)
	assert.Equal(t, models.BatchStatusPending, got.Status)

	_, err = s.GetBatch(ctx, "batch_missing")
	assert.ErrorContains(t, err, "not found")
}

func TestBatchStorageUpdateAppendsErrors(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	batch := newStoredBatch(t, s)

	// Two updates against the same record must both survive.
	for _, msg := range []string{"first failure", "second failure"} {
		_, err := s.UpdateBatch(ctx, batch.ID, func(b *models.Batch) error {
			b.AppendError(b.Stages[0][0], b.Documents[0], msg)
			return nil
		})
		require.NoError(t, err)
	}

	got, err := s.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, got.Errors, 2)
	assert.Equal(t, "first failure", got.Errors[0].Message)
	assert.Equal(t, "second failure", got.Errors[1].Message)
}

func TestBatchStorageList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	running := newStoredBatch(t, s)
	_, err := s.UpdateBatch(ctx, running.ID, func(b *models.Batch) error {
		b.MarkStarted()
		return nil
	})
	require.NoError(t, err)

	newStoredBatch(t, s)

	all, err := s.ListBatches(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyRunning, err := s.ListBatches(ctx, models.BatchStatusRunning, 0)
	require.NoError(t, err)
	require.Len(t, onlyRunning, 1)
	assert.Equal(t, running.ID, onlyRunning[0].ID)
}

func TestBatchStorageListStale(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	stale := newStoredBatch(t, s)
	_, err := s.UpdateBatch(ctx, stale.ID, func(b *models.Batch) error {
		b.MarkStarted()
		b.MarkCompleted()
		old := time.Now().Add(-48 * time.Hour)
		b.CompletedAt = &old
		return nil
	})
	require.NoError(t, err)

	fresh := newStoredBatch(t, s)
	_, err = s.UpdateBatch(ctx, fresh.ID, func(b *models.Batch) error {
		b.MarkStarted()
		b.MarkCompleted()
		return nil
	})
	require.NoError(t, err)

	newStoredBatch(t, s) // still pending, never stale

	got, err := s.ListStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

func TestBatchStorageDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	batch := newStoredBatch(t, s)
	require.NoError(t, s.DeleteBatch(ctx, batch.ID))

	_, err := s.GetBatch(ctx, batch.ID)
	assert.Error(t, err)
	assert.ErrorContains(t, s.DeleteBatch(ctx, batch.ID), "not found")
}
