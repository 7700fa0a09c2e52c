package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsCollection) // GET (list), POST (upload)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)     // /{id}, /{id}/results, /{id}/events

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsCollection routes /api/jobs by method
func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.JobHandler.ListJobsHandler(w, r)
	case "POST":
		s.app.JobHandler.UploadHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} and its subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 0 || parts[0] == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1:
		s.app.JobHandler.GetJobHandler(w, r, jobID)
	case len(parts) == 2 && parts[1] == "results":
		s.app.JobHandler.ResultsHandler(w, r, jobID)
	case len(parts) == 2 && parts[1] == "events":
		s.app.SSEHandler.EventsHandler(w, r, jobID)
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
