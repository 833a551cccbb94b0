package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/queue"
	"github.com/ternarybob/lectio/internal/storage/badger"
)

// executorFunc adapts a function to the Executor interface.
type executorFunc func(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error)

func (f executorFunc) Execute(ctx context.Context, doc models.DocumentRef, args map[string]string) (models.DocumentRef, error) {
	return f(ctx, doc, args)
}

// suffixExecutor appends a suffix to the document path, standing in for a
// real transform.
func suffixExecutor(suffix string) Executor {
	return executorFunc(func(_ context.Context, doc models.DocumentRef, _ map[string]string) (models.DocumentRef, error) {
		return models.DocumentRef{Job: doc.Job, Path: doc.Path + suffix}, nil
	})
}

func newTestPool(t *testing.T) (*Pool, *badger.BatchStorage, *queue.Manager) {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	batches := badger.NewBatchStorage(db, logger)
	queueMgr, err := queue.NewManager(db.Store().Badger(), "tasks", 5*time.Second, 3)
	require.NoError(t, err)

	pool := NewPool(queueMgr, batches, logger, 2, 10*time.Millisecond)
	return pool, batches, queueMgr
}

// newTestBatch persists a running two-document batch and enqueues its
// first stage.
func newTestBatch(t *testing.T, batches *badger.BatchStorage, queueMgr *queue.Manager, stages ...[]models.TaskSpec) *models.Batch {
	t.Helper()
	ctx := context.Background()

	docs := []models.DocumentRef{
		{Job: "job1", Path: "page1.png"},
		{Job: "job1", Path: "page2.png"},
	}
	batch := models.NewBatch("job1", docs)
	for _, stage := range stages {
		batch.AddStage(stage...)
	}
	batch.MarkStarted()
	require.NoError(t, batches.SaveBatch(ctx, batch))

	for _, doc := range docs {
		require.NoError(t, queueMgr.Enqueue(ctx, models.QueueMessage{
			BatchID:  batch.ID,
			Stage:    0,
			Task:     batch.Stages[0][0],
			Document: doc,
		}))
	}
	return batch
}

func waitForTerminal(t *testing.T, batches *badger.BatchStorage, batchID string) *models.Batch {
	t.Helper()

	var result *models.Batch
	require.Eventually(t, func() bool {
		b, err := batches.GetBatch(context.Background(), batchID)
		if err != nil {
			return false
		}
		result = b
		return b.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)
	return result
}

func TestPoolProcessesChain(t *testing.T) {
	pool, batches, queueMgr := newTestPool(t)
	pool.RegisterExecutor("img.gray", suffixExecutor("_g"))
	pool.RegisterExecutor("ocr.run", suffixExecutor("_o"))

	batch := newTestBatch(t, batches, queueMgr,
		[]models.TaskSpec{{Kind: "img.gray"}},
		[]models.TaskSpec{{Kind: "ocr.run"}},
	)

	pool.Start()
	defer pool.Stop()

	result := waitForTerminal(t, batches, batch.ID)
	assert.Equal(t, models.BatchStatusCompleted, result.Status)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.DocsDone)
	assert.Equal(t, 2, result.Progress[0].Completed)
	assert.Equal(t, 2, result.Progress[1].Completed)

	paths := make([]string, 0, len(result.Outputs))
	for _, out := range result.Outputs {
		paths = append(paths, out.Path)
	}
	assert.ElementsMatch(t, []string{"page1.png_g_o", "page2.png_g_o"}, paths)
}

func TestPoolMultipleTasksPerStage(t *testing.T) {
	pool, batches, queueMgr := newTestPool(t)
	pool.RegisterExecutor("img.gray", suffixExecutor("_g"))
	pool.RegisterExecutor("img.bin", suffixExecutor("_b"))

	batch := newTestBatch(t, batches, queueMgr,
		[]models.TaskSpec{{Kind: "img.gray"}, {Kind: "img.bin"}},
	)

	pool.Start()
	defer pool.Stop()

	result := waitForTerminal(t, batches, batch.ID)
	assert.Equal(t, models.BatchStatusCompleted, result.Status)
	// Both tasks of the stage ran in order on each document
	assert.Equal(t, 4, result.Progress[0].Completed)

	paths := make([]string, 0, len(result.Outputs))
	for _, out := range result.Outputs {
		paths = append(paths, out.Path)
	}
	assert.ElementsMatch(t, []string{"page1.png_g_b", "page2.png_g_b"}, paths)
}

func TestPoolRecordsFailures(t *testing.T) {
	pool, batches, queueMgr := newTestPool(t)
	pool.RegisterExecutor("img.gray", executorFunc(func(_ context.Context, doc models.DocumentRef, _ map[string]string) (models.DocumentRef, error) {
		return models.DocumentRef{}, fmt.Errorf("cannot read %s", doc.Path)
	}))
	pool.RegisterExecutor("ocr.run", suffixExecutor("_o"))

	batch := newTestBatch(t, batches, queueMgr,
		[]models.TaskSpec{{Kind: "img.gray"}},
		[]models.TaskSpec{{Kind: "ocr.run"}},
	)

	pool.Start()
	defer pool.Stop()

	result := waitForTerminal(t, batches, batch.ID)
	assert.Equal(t, models.BatchStatusFailed, result.Status)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Progress[0].Failed)
	// The chains never reached the second stage
	assert.Equal(t, 0, result.Progress[1].Completed)
	assert.Empty(t, result.Outputs)
}

func TestPoolUnregisteredExecutor(t *testing.T) {
	pool, batches, queueMgr := newTestPool(t)

	batch := newTestBatch(t, batches, queueMgr,
		[]models.TaskSpec{{Kind: "no.such.task"}},
	)

	pool.Start()
	defer pool.Stop()

	result := waitForTerminal(t, batches, batch.ID)
	assert.Equal(t, models.BatchStatusFailed, result.Status)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0].Message, "no executor registered")
}
