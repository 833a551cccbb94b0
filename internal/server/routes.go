package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Batches (OCR batch management)
	mux.HandleFunc("/api/batches", s.handleBatchesRoute)                // GET (list), POST (create)
	mux.HandleFunc("/api/batches/", s.app.BatchHandler.GetBatchHandler) // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/healthz", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleBatchesRoute routes /api/batches by method
func (s *Server) handleBatchesRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.BatchHandler.ListBatchesHandler,
		s.app.BatchHandler.CreateBatchHandler,
	)
}
