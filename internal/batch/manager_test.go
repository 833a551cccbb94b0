package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/queue"
	"github.com/ternarybob/lectio/internal/storage"
	"github.com/ternarybob/lectio/internal/storage/badger"
	"github.com/ternarybob/lectio/internal/tasks"
)

func newTestManager(t *testing.T) (*Manager, *queue.Manager) {
	t.Helper()
	logger := arbor.NewLogger()

	pipeline := &common.PipelineConfig{
		StoragePath: t.TempDir(),
		LangDicts: map[string]common.PathSegments{
			"grc": {"dicts", "grc.txt"},
		},
		OcropusModels: map[string]common.PathSegments{
			"greek": {"models", "greek.pyrnn.gz"},
		},
	}
	store, err := storage.NewFilestore(logger, pipeline)
	require.NoError(t, err)

	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	batches := badger.NewBatchStorage(db, logger)
	queueMgr, err := queue.NewManager(db.Store().Badger(), "tasks", time.Minute, 3)
	require.NoError(t, err)

	return NewManager(logger, pipeline, store, batches, queueMgr), queueMgr
}

// newInputDir writes page image fixtures into a temp directory.
func newInputDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("image-data"), 0o644))
	}
	return dir
}

func TestCreateBatch(t *testing.T) {
	mgr, queueMgr := newTestManager(t)
	ctx := context.Background()

	dir := newInputDir(t, "0002.png", "0001.png", "notes.txt")

	batch, err := mgr.CreateBatch(ctx, CreateOptions{
		InputDir: dir,
		Engine:   "tesseract",
		Language: "grc",
	})
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusRunning, batch.Status)
	// Non-image files are skipped and pages sort by name
	require.Len(t, batch.Documents, 2)
	assert.Equal(t, "0001.png", batch.Documents[0].Path)
	assert.Equal(t, "0002.png", batch.Documents[1].Path)

	// Image prep, recognition, spell check
	require.Len(t, batch.Stages, 3)
	assert.Equal(t, tasks.KindSpellCheck, batch.Stages[2][0].Kind)

	// One stage-0 message per document
	n, err := queueMgr.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The pages landed under the batch's filestore job
	stored, err := mgr.Status(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, stored.ID)
}

func TestCreateBatchEmptyDir(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateBatch(context.Background(), CreateOptions{
		InputDir: newInputDir(t),
		Language: "grc",
	})
	assert.Error(t, err)
}

func TestBuildStages(t *testing.T) {
	mgr, _ := newTestManager(t)

	tests := []struct {
		name      string
		engine    string
		language  string
		model     string
		wantErr   bool
		numStages int
		recognize string
	}{
		{"tesseract with dictionary", "tesseract", "grc", "", false, 3, tasks.KindTesseract},
		{"default engine", "", "grc", "", false, 3, tasks.KindTesseract},
		{"tesseract without dictionary", "tesseract", "eng", "", false, 2, tasks.KindTesseract},
		{"ocropus", "ocropus", "grc", "greek", false, 3, tasks.KindOcropus},
		{"ocropus unknown model", "ocropus", "grc", "missing", true, 0, ""},
		{"ocropus without model", "ocropus", "grc", "", true, 0, ""},
		{"tesseract without language", "tesseract", "", "", true, 0, ""},
		{"unknown engine", "kraken", "grc", "", true, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := mgr.BuildStages(tt.engine, tt.language, tt.model)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, stages, tt.numStages)
			assert.Equal(t, tt.recognize, stages[1][0].Kind)
		})
	}
}

func TestCleanupStale(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	job, err := mgr.store.NewJob()
	require.NoError(t, err)

	old := models.NewBatch(job, []models.DocumentRef{{Job: job, Path: "p.png"}})
	old.AddStage(models.TaskSpec{Kind: tasks.KindGrayscale})
	old.MarkStarted()
	old.MarkCompleted()
	past := time.Now().Add(-48 * time.Hour)
	old.CompletedAt = &past
	require.NoError(t, mgr.batches.SaveBatch(ctx, old))

	removed, err := mgr.CleanupStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = mgr.Status(ctx, old.ID)
	assert.Error(t, err)
	assert.False(t, mgr.store.IsValidJob(job))
}
