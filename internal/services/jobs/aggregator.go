package jobs

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/models"
	"github.com/ternarybob/revlook/internal/services/events"
)

// Aggregator folds result envelopes from the results queue into job state
// and publishes progress events. It is safe to run several aggregator
// consumers; storage deduplicates replayed batches.
type Aggregator struct {
	jobs   JobStore
	events *events.Publisher
	logger arbor.ILogger
}

// NewAggregator creates a new result aggregator
func NewAggregator(jobs JobStore, eventPub *events.Publisher, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		jobs:   jobs,
		events: eventPub,
		logger: logger,
	}
}

// HandleEnvelope processes one results-queue delivery. Malformed payloads
// and envelopes for unknown jobs are dropped; storage errors propagate so
// the delivery is requeued.
func (a *Aggregator) HandleEnvelope(ctx context.Context, body []byte) error {
	env, err := models.DecodeResultEnvelope(body)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Dropping malformed result envelope")
		return nil
	}

	outcome, err := a.jobs.ApplyResultEnvelope(ctx, env)
	if err != nil {
		return err
	}

	switch {
	case outcome.JobMissing:
		a.logger.Warn().
			Str("job_id", env.JobID.String()).
			Int("batch_index", env.BatchIndex).
			Msg("Dropping envelope for unknown job")
		return nil
	case outcome.Duplicate:
		a.logger.Debug().
			Str("job_id", env.JobID.String()).
			Int("batch_index", env.BatchIndex).
			Msg("Dropping replayed envelope")
		return nil
	}

	// Every counted batch reports progress, the final one included, so a
	// single-batch job still yields a progress event before completed.
	a.events.Publish(env.JobID, events.Event{
		Type: events.EventProgress,
		Payload: events.ProgressPayload{
			JobID:            env.JobID,
			BatchesCompleted: outcome.BatchesCompleted,
			BatchesExpected:  outcome.BatchesExpected,
			FoundCount:       outcome.FoundCount,
		},
	})

	if outcome.Completed {
		a.logger.Info().
			Str("job_id", env.JobID.String()).
			Int("found_count", outcome.FoundCount).
			Msg("Job completed")
		a.events.Complete(env.JobID, events.Event{
			Type:    events.EventCompleted,
			Payload: events.CompletedPayload{JobID: env.JobID},
		})
	}

	return nil
}
