package minion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/common"
	"github.com/ternarybob/revlook/internal/models"
)

// MappingReader resolves fingerprints against the precomputed mapping
type MappingReader interface {
	LookupBatch(ctx context.Context, hashesHex []string) ([]models.Match, error)
}

// ResultWriter persists discovered matches
type ResultWriter interface {
	InsertMatches(ctx context.Context, jobID uuid.UUID, matches []models.Match) error
}

// EnvelopePublisher publishes encoded result envelopes
type EnvelopePublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Worker processes work units: one mapping lookup per unit, idempotent
// result writes, then a result envelope back to the coordinator. The
// write-then-publish order means a crash between the two steps replays the
// unit without double-counting anything.
type Worker struct {
	mapping   MappingReader
	results   ResultWriter
	publisher EnvelopePublisher
	config    *common.Config
	logger    arbor.ILogger
}

// NewWorker creates a new work-unit processor
func NewWorker(mapping MappingReader, results ResultWriter, publisher EnvelopePublisher, config *common.Config, logger arbor.ILogger) *Worker {
	return &Worker{
		mapping:   mapping,
		results:   results,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// HandleWorkUnit processes one work-queue delivery. Malformed payloads are
// dropped; lookup, write and publish failures propagate so the delivery is
// requeued and retried.
func (w *Worker) HandleWorkUnit(ctx context.Context, body []byte) error {
	unit, err := models.DecodeWorkUnit(body)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Dropping malformed work unit")
		return nil
	}

	var matches []models.Match
	if len(unit.Hashes) > 0 {
		matches, err = w.mapping.LookupBatch(ctx, unit.Hashes)
		if err != nil {
			return fmt.Errorf("lookup failed for job %s batch %d: %w", unit.JobID, unit.BatchIndex, err)
		}
	}

	if len(matches) > 0 {
		if err := w.results.InsertMatches(ctx, unit.JobID, matches); err != nil {
			return fmt.Errorf("result write failed for job %s batch %d: %w", unit.JobID, unit.BatchIndex, err)
		}
	}

	envelope, err := models.EncodeResultEnvelope(models.ResultEnvelope{
		JobID:      unit.JobID,
		BatchIndex: unit.BatchIndex,
		Matches:    matches,
	})
	if err != nil {
		return fmt.Errorf("failed to encode result envelope: %w", err)
	}
	if err := w.publisher.Publish(ctx, w.config.Broker.ResultsQueue, envelope); err != nil {
		return fmt.Errorf("failed to publish result envelope: %w", err)
	}

	w.logger.Debug().
		Str("job_id", unit.JobID.String()).
		Int("batch_index", unit.BatchIndex).
		Int("hashes", len(unit.Hashes)).
		Int("matches", len(matches)).
		Msg("Work unit processed")
	return nil
}
