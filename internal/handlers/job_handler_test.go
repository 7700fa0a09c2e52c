package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/revlook/internal/common"
	"github.com/ternarybob/revlook/internal/models"
	"github.com/ternarybob/revlook/internal/services/events"
	"github.com/ternarybob/revlook/internal/services/jobs"
	"github.com/ternarybob/revlook/internal/storage/postgres"
)

type stubJobStore struct {
	jobs map[uuid.UUID]*models.Job
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *stubJobStore) CreateJobWithTargets(_ context.Context, jobID uuid.UUID, totalHashes, batchesExpected int, _ []string) error {
	s.jobs[jobID] = &models.Job{
		JobID:           jobID,
		Status:          models.JobStatusRunning,
		TotalHashes:     totalHashes,
		BatchesExpected: batchesExpected,
	}
	return nil
}

func (s *stubJobStore) GetJob(_ context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, postgres.ErrJobNotFound
	}
	return job, nil
}

func (s *stubJobStore) ListCompletedJobs(context.Context) ([]models.Job, error) {
	completed := []models.Job{}
	for _, job := range s.jobs {
		if job.IsComplete() {
			completed = append(completed, *job)
		}
	}
	return completed, nil
}

func (s *stubJobStore) MarkComplete(_ context.Context, jobID uuid.UUID) (bool, error) {
	job, ok := s.jobs[jobID]
	if !ok || job.Status != models.JobStatusRunning {
		return false, nil
	}
	job.Status = models.JobStatusCompleted
	return true, nil
}

func (s *stubJobStore) ApplyResultEnvelope(context.Context, models.ResultEnvelope) (postgres.EnvelopeOutcome, error) {
	return postgres.EnvelopeOutcome{}, nil
}

type stubResultStore struct {
	rows []models.ResultRow
}

func (s *stubResultStore) GetResultRows(context.Context, uuid.UUID) ([]models.ResultRow, error) {
	return s.rows, nil
}

type stubPublisher struct {
	published int
}

func (s *stubPublisher) Publish(context.Context, string, []byte) error {
	s.published++
	return nil
}

func newTestHandlers(store *stubJobStore, results *stubResultStore) (*JobHandler, *SSEHandler) {
	logger := common.GetLogger()
	eventPub := events.NewPublisher(logger)
	service := jobs.NewService(store, results, &stubPublisher{}, eventPub, common.NewDefaultConfig(), logger)
	return NewJobHandler(service, logger), NewSSEHandler(service, eventPub, logger)
}

func multipartUpload(t *testing.T, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "hashes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler_Accepted(t *testing.T) {
	store := newStubJobStore()
	jobHandler, _ := newTestHandlers(store, &stubResultStore{})

	rec := httptest.NewRecorder()
	jobHandler.UploadHandler(rec, multipartUpload(t, "0cc175b9c0f1b6a831c399e269772661\n"))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	jobID, err := uuid.Parse(body["jobId"])
	require.NoError(t, err)

	job, ok := store.jobs[jobID]
	require.True(t, ok)
	assert.Equal(t, 1, job.TotalHashes)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	jobHandler, _ := newTestHandlers(newStubJobStore(), &stubResultStore{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	jobHandler.UploadHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandler_MethodNotAllowed(t *testing.T) {
	jobHandler, _ := newTestHandlers(newStubJobStore(), &stubResultStore{})

	rec := httptest.NewRecorder()
	jobHandler.UploadHandler(rec, httptest.NewRequest("GET", "/api/jobs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetJobHandler(t *testing.T) {
	store := newStubJobStore()
	jobID := uuid.New()
	store.jobs[jobID] = &models.Job{JobID: jobID, Status: models.JobStatusRunning, TotalHashes: 5}
	jobHandler, _ := newTestHandlers(store, &stubResultStore{})

	rec := httptest.NewRecorder()
	jobHandler.GetJobHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+jobID.String(), nil), jobID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, 5, job.TotalHashes)

	rec = httptest.NewRecorder()
	jobHandler.GetJobHandler(rec, httptest.NewRequest("GET", "/api/jobs/x", nil), "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	unknown := uuid.NewString()
	jobHandler.GetJobHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+unknown, nil), unknown)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultsHandler(t *testing.T) {
	store := newStubJobStore()
	jobID := uuid.New()
	store.jobs[jobID] = &models.Job{JobID: jobID, Status: models.JobStatusCompleted}
	results := &stubResultStore{rows: []models.ResultRow{
		{HashHex: "0cc175b9c0f1b6a831c399e269772661", Phone: "13512345678"},
		{HashHex: "92eb5ffee6ae2fec3ad71c777531578f", Phone: models.NotFoundPlaceholder},
	}}
	jobHandler, _ := newTestHandlers(store, results)

	rec := httptest.NewRecorder()
	jobHandler.ResultsHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+jobID.String()+"/results", nil), jobID.String())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), jobID.String()+"-results.csv")
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "hash,phone", lines[0])
	assert.Equal(t, "0cc175b9c0f1b6a831c399e269772661,13512345678", lines[1])
	assert.Equal(t, "92eb5ffee6ae2fec3ad71c777531578f,NOT FOUND", lines[2])
}

func TestEventsHandler_CompletedJobClosesImmediately(t *testing.T) {
	store := newStubJobStore()
	jobID := uuid.New()
	store.jobs[jobID] = &models.Job{
		JobID:            jobID,
		Status:           models.JobStatusCompleted,
		BatchesCompleted: 2,
		BatchesExpected:  2,
		FoundCount:       1,
	}
	_, sseHandler := newTestHandlers(store, &stubResultStore{})

	rec := httptest.NewRecorder()
	sseHandler.EventsHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+jobID.String()+"/events", nil), jobID.String())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: message\n")
	assert.Contains(t, body, `"type":"completed"`)
	assert.Contains(t, body, `"jobId":"`+jobID.String()+`"`)
}

func TestEventsHandler_UnknownJob(t *testing.T) {
	_, sseHandler := newTestHandlers(newStubJobStore(), &stubResultStore{})

	rec := httptest.NewRecorder()
	unknown := uuid.NewString()
	sseHandler.EventsHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+unknown+"/events", nil), unknown)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
