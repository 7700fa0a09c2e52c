package jobs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/common"
	"github.com/ternarybob/revlook/internal/models"
	"github.com/ternarybob/revlook/internal/services/events"
	"github.com/ternarybob/revlook/internal/storage/postgres"
)

// JobStore is the storage surface the job service depends on
type JobStore interface {
	CreateJobWithTargets(ctx context.Context, jobID uuid.UUID, totalHashes, batchesExpected int, hashes []string) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	ListCompletedJobs(ctx context.Context) ([]models.Job, error)
	MarkComplete(ctx context.Context, jobID uuid.UUID) (bool, error)
	ApplyResultEnvelope(ctx context.Context, env models.ResultEnvelope) (postgres.EnvelopeOutcome, error)
}

// ResultStore reads per-job result rows for artifact generation
type ResultStore interface {
	GetResultRows(ctx context.Context, jobID uuid.UUID) ([]models.ResultRow, error)
}

// WorkPublisher publishes encoded messages to the broker
type WorkPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Service owns the job lifecycle: admission, partitioning, dispatch and
// artifact generation.
type Service struct {
	jobs      JobStore
	results   ResultStore
	publisher WorkPublisher
	events    *events.Publisher
	config    *common.Config
	logger    arbor.ILogger
}

// NewService creates a new job service
func NewService(jobs JobStore, results ResultStore, publisher WorkPublisher, eventPub *events.Publisher, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		jobs:      jobs,
		results:   results,
		publisher: publisher,
		events:    eventPub,
		config:    config,
		logger:    logger,
	}
}

// CreateJob admits an uploaded fingerprint file: lines are trimmed,
// validated and lowercased, malformed lines are dropped, and the survivors
// are partitioned into fixed-size work units and dispatched. A job with no
// valid fingerprints completes immediately without dispatching anything.
func (s *Service) CreateJob(ctx context.Context, upload io.Reader) (*models.Job, error) {
	hashes, dropped, err := readFingerprints(upload)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	batches := SplitBatches(hashes, s.config.Jobs.BatchSize)

	if err := s.jobs.CreateJobWithTargets(ctx, jobID, len(hashes), len(batches), hashes); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", jobID.String()).
		Int("total_hashes", len(hashes)).
		Int("batches", len(batches)).
		Int("dropped_lines", dropped).
		Msg("Job admitted")

	s.events.Publish(jobID, events.Event{
		Type: events.EventJobCreated,
		Payload: events.CreatedPayload{
			JobID:           jobID,
			TotalHashes:     len(hashes),
			BatchesExpected: len(batches),
		},
	})

	if len(batches) == 0 {
		if _, err := s.jobs.MarkComplete(ctx, jobID); err != nil {
			return nil, err
		}
		s.events.Complete(jobID, events.Event{
			Type:    events.EventCompleted,
			Payload: events.CompletedPayload{JobID: jobID},
		})
		return s.jobs.GetJob(ctx, jobID)
	}

	for i, batch := range batches {
		body, err := models.EncodeWorkUnit(models.WorkUnit{
			JobID:      jobID,
			BatchIndex: i,
			Hashes:     batch,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode work unit: %w", err)
		}
		if err := s.publisher.Publish(ctx, s.config.Broker.WorkQueue, body); err != nil {
			return nil, fmt.Errorf("failed to dispatch work unit %d: %w", i, err)
		}
	}

	return s.jobs.GetJob(ctx, jobID)
}

// GetJob retrieves a job by ID
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListCompletedJobs returns all completed jobs, newest first
func (s *Service) ListCompletedJobs(ctx context.Context) ([]models.Job, error) {
	return s.jobs.ListCompletedJobs(ctx)
}

// BuildResultsCSV renders the job's result artifact: a header row followed
// by one "hash,phone" line per target in fingerprint order, with NOT FOUND
// for unresolved targets.
func (s *Service) BuildResultsCSV(ctx context.Context, jobID uuid.UUID) (string, error) {
	if _, err := s.jobs.GetJob(ctx, jobID); err != nil {
		return "", err
	}

	rows, err := s.results.GetResultRows(ctx, jobID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("hash,phone\n")
	for _, row := range rows {
		b.WriteString(row.HashHex)
		b.WriteString(",")
		b.WriteString(row.Phone)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// SplitBatches partitions hashes into consecutive slices of at most size
// elements, preserving order. An empty input yields no batches.
func SplitBatches(hashes []string, size int) [][]string {
	if len(hashes) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(hashes)+size-1)/size)
	for start := 0; start < len(hashes); start += size {
		end := start + size
		if end > len(hashes) {
			end = len(hashes)
		}
		batches = append(batches, hashes[start:end])
	}
	return batches
}

// readFingerprints scans the upload line by line, returning the admitted
// fingerprints in input order plus the count of dropped lines.
func readFingerprints(r io.Reader) ([]string, int, error) {
	var hashes []string
	dropped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		hash, ok := models.NormalizeFingerprint(scanner.Text())
		if !ok {
			if strings.TrimSpace(scanner.Text()) != "" {
				dropped++
			}
			continue
		}
		hashes = append(hashes, hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read upload: %w", err)
	}
	return hashes, dropped, nil
}
