// -----------------------------------------------------------------------
// Batch manager - ingests page images into the filestore, builds the
// stage plan, and feeds the first stage to the task queue
// -----------------------------------------------------------------------

package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/queue"
	"github.com/ternarybob/lectio/internal/storage"
	"github.com/ternarybob/lectio/internal/storage/badger"
	"github.com/ternarybob/lectio/internal/tasks"
)

// Page image extensions accepted for ingestion.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// Manager creates and tracks OCR batches.
type Manager struct {
	logger   arbor.ILogger
	pipeline *common.PipelineConfig
	store    *storage.Filestore
	batches  *badger.BatchStorage
	queueMgr *queue.Manager
}

// NewManager creates a batch manager.
func NewManager(logger arbor.ILogger, pipeline *common.PipelineConfig, store *storage.Filestore, batches *badger.BatchStorage, queueMgr *queue.Manager) *Manager {
	return &Manager{
		logger:   logger,
		pipeline: pipeline,
		store:    store,
		batches:  batches,
		queueMgr: queueMgr,
	}
}

// CreateOptions describes a batch submission.
type CreateOptions struct {
	InputDir string              // Directory of page images to ingest
	Engine   string              // "tesseract" or "ocropus"
	Language string              // Tesseract language / spell check dictionary
	Model    string              // Ocropus recognition model name
	Stages   [][]models.TaskSpec // Explicit stage plan; if nil one is built from the other fields
}

// CreateBatch ingests the input directory into a fresh filestore job,
// persists the batch, and enqueues the first stage. The batch starts
// running immediately.
func (m *Manager) CreateBatch(ctx context.Context, opts CreateOptions) (*models.Batch, error) {
	stages := opts.Stages
	if stages == nil {
		built, err := m.BuildStages(opts.Engine, opts.Language, opts.Model)
		if err != nil {
			return nil, err
		}
		stages = built
	}

	job, err := m.store.NewJob()
	if err != nil {
		return nil, err
	}
	docs, err := m.ingest(job, opts.InputDir)
	if err != nil {
		return nil, err
	}

	batch := models.NewBatch(job, docs)
	for _, stage := range stages {
		batch.AddStage(stage...)
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	batch.MarkStarted()

	if err := m.batches.SaveBatch(ctx, batch); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		msg := models.QueueMessage{
			BatchID:  batch.ID,
			Stage:    0,
			Task:     batch.Stages[0][0],
			Document: doc,
		}
		if err := m.queueMgr.Enqueue(ctx, msg); err != nil {
			return nil, fmt.Errorf("failed to enqueue batch: %w", err)
		}
	}

	m.logger.Info().
		Str("batch_id", batch.ID).
		Str("job", job).
		Int("documents", len(docs)).
		Int("stages", len(batch.Stages)).
		Msg("Batch created")
	return batch, nil
}

// BuildStages derives the standard stage plan from the pipeline
// configuration: image preparation, recognition, and a spell check stage
// when a dictionary is configured for the language.
func (m *Manager) BuildStages(engine, language, model string) ([][]models.TaskSpec, error) {
	var recognize models.TaskSpec
	switch engine {
	case "tesseract", "":
		if language == "" {
			return nil, fmt.Errorf("tesseract recognition requires a language")
		}
		recognize = models.TaskSpec{Kind: tasks.KindTesseract, Args: map[string]string{"languages": language}}
	case "ocropus":
		if model == "" {
			return nil, fmt.Errorf("ocropus recognition requires a model")
		}
		if _, ok := m.pipeline.Model(model); !ok {
			return nil, fmt.Errorf("unknown ocropus model %q", model)
		}
		recognize = models.TaskSpec{Kind: tasks.KindOcropus, Args: map[string]string{"model": model}}
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", engine)
	}

	stages := [][]models.TaskSpec{
		{{Kind: tasks.KindGrayscale}, {Kind: tasks.KindBinarize}},
		{recognize},
	}
	if _, ok := m.pipeline.Dictionary(language); ok {
		stages = append(stages, []models.TaskSpec{
			{Kind: tasks.KindSpellCheck, Args: map[string]string{"language": language}},
		})
	}
	return stages, nil
}

// ingest copies the page images of a directory into the job, in name
// order so document numbering is stable.
func (m *Manager) ingest(job, inputDir string) ([]models.DocumentRef, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no page images found in %s", inputDir)
	}

	docs := make([]models.DocumentRef, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read page image %s: %w", name, err)
		}
		doc := models.DocumentRef{Job: job, Path: name}
		if err := m.store.Store(doc, data); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Status returns the current state of a batch.
func (m *Manager) Status(ctx context.Context, batchID string) (*models.Batch, error) {
	return m.batches.GetBatch(ctx, batchID)
}

// List returns recent batches, optionally filtered by status.
func (m *Manager) List(ctx context.Context, status models.BatchStatus, limit int) ([]*models.Batch, error) {
	return m.batches.ListBatches(ctx, status, limit)
}

// CleanupStale deletes terminal batches older than the retention period
// together with their filestore jobs. Returns the number removed.
func (m *Manager) CleanupStale(ctx context.Context, retention time.Duration) (int, error) {
	stale, err := m.batches.ListStale(ctx, retention)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range stale {
		if err := m.store.RemoveJob(b.Job); err != nil {
			m.logger.Warn().Err(err).Str("batch_id", b.ID).Msg("Failed to remove job artifacts")
		}
		if err := m.batches.DeleteBatch(ctx, b.ID); err != nil {
			m.logger.Warn().Err(err).Str("batch_id", b.ID).Msg("Failed to delete batch record")
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("Cleaned up stale batches")
	}
	return removed, nil
}
