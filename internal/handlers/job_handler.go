package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/services/jobs"
	"github.com/ternarybob/revlook/internal/storage/postgres"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing; larger
// uploads spill to temp files.
const maxUploadMemory = 32 << 20

// JobHandler serves the job lifecycle API: upload, status, listing and the
// results artifact.
type JobHandler struct {
	service *jobs.Service
	logger  arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(service *jobs.Service, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

// UploadHandler handles POST /api/jobs - admit an uploaded fingerprint file
func (h *JobHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "Expected multipart form upload")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing form file field 'file'")
		return
	}
	defer file.Close()

	job, err := h.service.CreateJob(r.Context(), file)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create job")
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"jobId": job.JobID.String(),
	})
}

// ListJobsHandler handles GET /api/jobs - list completed jobs, newest first
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobList, err := h.service.ListCompletedJobs(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, jobList)
}

// GetJobHandler handles GET /api/jobs/{id} - job status
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobIDStr string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, postgres.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobIDStr).Msg("Failed to get job")
		WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ResultsHandler handles GET /api/jobs/{id}/results - download the results
// artifact. Before completion this serves a partial snapshot: every target
// is listed, resolved or NOT FOUND so far.
func (h *JobHandler) ResultsHandler(w http.ResponseWriter, r *http.Request, jobIDStr string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	csv, err := h.service.BuildResultsCSV(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, postgres.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobIDStr).Msg("Failed to build results")
		WriteError(w, http.StatusInternalServerError, "Failed to build results")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-results.csv"`, jobID))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(csv))
}
