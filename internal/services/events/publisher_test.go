package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/revlook/internal/common"
)

func newTestPublisher() *Publisher {
	return NewPublisher(common.GetLogger())
}

func TestPublisher_SubscribeAndPublish(t *testing.T) {
	p := newTestPublisher()
	jobID := uuid.New()

	sub := p.Subscribe(jobID)
	p.Publish(jobID, Event{Type: EventProgress, Payload: ProgressPayload{JobID: jobID, BatchesCompleted: 1, BatchesExpected: 3}})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventProgress, ev.Type)
	default:
		t.Fatal("expected buffered event")
	}
}

func TestPublisher_PublishWithoutSubscriberIsNoop(t *testing.T) {
	p := newTestPublisher()

	// Must not panic or block
	p.Publish(uuid.New(), Event{Type: EventProgress})
}

func TestPublisher_NewSubscriberEvictsPrevious(t *testing.T) {
	p := newTestPublisher()
	jobID := uuid.New()

	first := p.Subscribe(jobID)
	second := p.Subscribe(jobID)

	select {
	case <-first.Done():
	default:
		t.Fatal("expected evicted subscription to be closed")
	}

	p.Publish(jobID, Event{Type: EventProgress})
	select {
	case <-second.Events():
	default:
		t.Fatal("expected event on the new subscription")
	}
	assert.Empty(t, first.Events())
}

func TestPublisher_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	p := newTestPublisher()
	jobID := uuid.New()
	sub := p.Subscribe(jobID)

	for i := 0; i < subscriptionBuffer+10; i++ {
		p.Publish(jobID, Event{Type: EventProgress})
	}

	assert.Len(t, sub.Events(), subscriptionBuffer)
}

func TestPublisher_CompleteClosesStream(t *testing.T) {
	p := newTestPublisher()
	jobID := uuid.New()
	sub := p.Subscribe(jobID)

	p.Complete(jobID, Event{Type: EventCompleted})

	ev, ok := <-sub.Events()
	require.True(t, ok)
	assert.Equal(t, EventCompleted, ev.Type)

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected Done to be closed after Complete")
	}

	// Stream is gone; further publishes are dropped silently
	p.Publish(jobID, Event{Type: EventProgress})
	assert.Empty(t, sub.Events())
}

func TestPublisher_UnsubscribeRemovesOnlyCurrent(t *testing.T) {
	p := newTestPublisher()
	jobID := uuid.New()

	stale := p.Subscribe(jobID)
	current := p.Subscribe(jobID)

	// Unsubscribing the evicted subscription must not disturb the current one
	p.Unsubscribe(jobID, stale)

	p.Publish(jobID, Event{Type: EventProgress})
	select {
	case <-current.Events():
	default:
		t.Fatal("expected current subscription to stay registered")
	}
}
