package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/batch"
	"github.com/ternarybob/lectio/internal/models"
)

// BatchHandler handles batch-related API requests
type BatchHandler struct {
	manager *batch.Manager
	logger  arbor.ILogger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(manager *batch.Manager, logger arbor.ILogger) *BatchHandler {
	return &BatchHandler{
		manager: manager,
		logger:  logger,
	}
}

// createBatchRequest is the POST /api/batches payload.
type createBatchRequest struct {
	InputDir string `json:"input_dir"`
	Engine   string `json:"engine"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

// ListBatchesHandler returns recent batches
// GET /api/batches?status=completed&limit=50
func (h *BatchHandler) ListBatchesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.BatchStatus(r.URL.Query().Get("status"))
	limit := QueryInt(r, "limit", 50)

	batches, err := h.manager.List(ctx, status, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list batches")
		WriteError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"count":   len(batches),
		"limit":   limit,
	})
}

// CreateBatchHandler ingests a directory of page images and starts a batch
// POST /api/batches
func (h *BatchHandler) CreateBatchHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.InputDir == "" {
		WriteError(w, http.StatusBadRequest, "input_dir is required")
		return
	}

	created, err := h.manager.CreateBatch(ctx, batch.CreateOptions{
		InputDir: req.InputDir,
		Engine:   req.Engine,
		Language: req.Language,
		Model:    req.Model,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("input_dir", req.InputDir).Msg("Failed to create batch")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

// GetBatchHandler returns a single batch by ID
// GET /api/batches/{id}
func (h *BatchHandler) GetBatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	ctx := r.Context()

	batchID := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	if batchID == "" || strings.Contains(batchID, "/") {
		WriteError(w, http.StatusBadRequest, "Invalid batch ID")
		return
	}

	found, err := h.manager.Status(ctx, batchID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Batch not found")
		return
	}

	WriteJSON(w, http.StatusOK, found)
}
