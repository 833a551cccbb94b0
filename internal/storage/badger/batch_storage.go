package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/lectio/internal/models"
)

// BatchStorage persists batch records in Badger. Task executors report
// status, progress, and errors through it; readers (CLI status, HTTP API)
// only ever see persisted state.
type BatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex // serializes read-modify-write updates
}

// NewBatchStorage creates a new BatchStorage instance
func NewBatchStorage(db *BadgerDB, logger arbor.ILogger) *BatchStorage {
	return &BatchStorage{
		db:     db,
		logger: logger,
	}
}

// SaveBatch inserts or replaces a batch record.
func (s *BatchStorage) SaveBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		return fmt.Errorf("batch ID is required")
	}

	if err := s.db.Store().Upsert(batch.ID, batch); err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by ID.
func (s *BatchStorage) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	var batch models.Batch
	if err := s.db.Store().Get(batchID, &batch); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("batch not found: %s", batchID)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &batch, nil
}

// UpdateBatch applies fn to the stored batch inside a read-modify-write
// cycle and persists the result. Concurrent task completions for the same
// batch must all go through here so no error or progress update is lost.
func (s *BatchStorage) UpdateBatch(ctx context.Context, batchID string, fn func(*models.Batch) error) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := fn(batch); err != nil {
		return nil, err
	}
	if err := s.SaveBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// ListBatches returns batches sorted newest first, optionally filtered by
// status.
func (s *BatchStorage) ListBatches(ctx context.Context, status models.BatchStatus, limit int) ([]*models.Batch, error) {
	query := badgerhold.Where("ID").Ne("")
	if status != "" {
		query = query.And("Status").Eq(status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	query = query.SortBy("CreatedAt").Reverse()

	var batches []models.Batch
	if err := s.db.Store().Find(&batches, query); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	result := make([]*models.Batch, len(batches))
	for i := range batches {
		result[i] = &batches[i]
	}
	return result, nil
}

// ListStale returns terminal batches whose completion predates the
// retention window. Used by the cleanup schedule.
func (s *BatchStorage) ListStale(ctx context.Context, retention time.Duration) ([]*models.Batch, error) {
	cutoff := time.Now().Add(-retention)

	var batches []models.Batch
	query := badgerhold.Where("Status").In(models.BatchStatusCompleted, models.BatchStatusFailed)
	if err := s.db.Store().Find(&batches, query); err != nil {
		return nil, fmt.Errorf("failed to list stale batches: %w", err)
	}

	// CompletedAt is a pointer field, so the cutoff comparison happens here
	// rather than in the query.
	var result []*models.Batch
	for i := range batches {
		if batches[i].CompletedAt != nil && batches[i].CompletedAt.Before(cutoff) {
			result = append(result, &batches[i])
		}
	}
	return result, nil
}

// DeleteBatch removes a batch record.
func (s *BatchStorage) DeleteBatch(ctx context.Context, batchID string) error {
	if err := s.db.Store().Delete(batchID, &models.Batch{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("batch not found: %s", batchID)
		}
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}
