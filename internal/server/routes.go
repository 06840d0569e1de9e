package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Crawling
	mux.HandleFunc("/api/markdown", s.app.CrawlHandler.MarkdownHandler) // POST - single crawl or batch

	// API routes - Image processing
	mux.HandleFunc("/api/upload-async", s.app.UploadHandler.UploadImageHandler) // POST - image upload + OCR job

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler) // GET - list jobs
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.JobRoutesHandler) // GET/DELETE /{id}

	// API routes - Artifacts
	mux.HandleFunc("/api/artifacts/", s.app.ArtifactHandler.GetArtifactHandler) // GET /{path}

	// Task delivery endpoint (local dispatcher and Cloud Tasks push)
	mux.HandleFunc("/tasks/", s.app.TaskHandler.ExecuteHandler) // POST /{type}/{job_id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
