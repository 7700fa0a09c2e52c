package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

const subscriptionBuffer = 64

// Event is one message on a job's event stream. Payload marshals to JSON as
// the "payload" field of the SSE frame.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Event types emitted over a job's stream.
const (
	EventJobCreated = "job_created"
	EventProgress   = "progress"
	EventCompleted  = "completed"
)

// ProgressPayload reports aggregation progress for a running job
type ProgressPayload struct {
	JobID            uuid.UUID `json:"jobId"`
	BatchesCompleted int       `json:"batchesCompleted"`
	BatchesExpected  int       `json:"batchesExpected"`
	FoundCount       int       `json:"foundCount"`
}

// CompletedPayload announces a finished job
type CompletedPayload struct {
	JobID uuid.UUID `json:"jobId"`
}

// CreatedPayload announces a newly admitted job
type CreatedPayload struct {
	JobID           uuid.UUID `json:"jobId"`
	TotalHashes     int       `json:"totalHashes"`
	BatchesExpected int       `json:"batchesExpected"`
}

// Subscription is one consumer of a job's event stream. Events are delivered
// on a bounded channel; Done is closed when the stream ends, either because
// the job completed or a newer subscriber took over.
type Subscription struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Events returns the event delivery channel
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the subscription will receive no further events
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Publisher fans job events out to at most one live subscriber per job. A
// new subscription for a job evicts the previous one, matching the
// single-emitter semantics of the stream endpoint.
type Publisher struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	logger arbor.ILogger
}

// NewPublisher creates a new event publisher
func NewPublisher(logger arbor.ILogger) *Publisher {
	return &Publisher{
		subs:   make(map[uuid.UUID]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a subscriber for the job's events, closing any
// previous subscriber for the same job.
func (p *Publisher) Subscribe(jobID uuid.UUID) *Subscription {
	sub := &Subscription{
		events: make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if prev, ok := p.subs[jobID]; ok {
		prev.close()
	}
	p.subs[jobID] = sub
	p.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription if it is still the job's current one
func (p *Publisher) Unsubscribe(jobID uuid.UUID, sub *Subscription) {
	p.mu.Lock()
	if current, ok := p.subs[jobID]; ok && current == sub {
		delete(p.subs, jobID)
	}
	p.mu.Unlock()
	sub.close()
}

// Publish delivers an event to the job's subscriber, if any. A subscriber
// that cannot keep up loses events rather than blocking the aggregator.
func (p *Publisher) Publish(jobID uuid.UUID, event Event) {
	p.mu.Lock()
	sub, ok := p.subs[jobID]
	p.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sub.events <- event:
	default:
		p.logger.Warn().
			Str("job_id", jobID.String()).
			Str("event_type", event.Type).
			Msg("Subscriber buffer full, dropping event")
	}
}

// Complete delivers a final event and ends the job's stream
func (p *Publisher) Complete(jobID uuid.UUID, event Event) {
	p.mu.Lock()
	sub, ok := p.subs[jobID]
	if ok {
		delete(p.subs, jobID)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sub.events <- event:
	default:
		p.logger.Warn().
			Str("job_id", jobID.String()).
			Msg("Subscriber buffer full, dropping final event")
	}
	sub.close()
}
