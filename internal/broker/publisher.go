package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ternarybob/arbor"
)

// Publisher publishes persistent JSON messages on a dedicated channel. AMQP
// channels are not safe for concurrent publishing, so a mutex serializes
// callers.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
	logger   arbor.ILogger
	mu       sync.Mutex
}

// NewPublisher opens a publishing channel on the broker connection
func (b *Broker) NewPublisher() (*Publisher, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}
	return &Publisher{
		ch:       ch,
		exchange: b.config.Exchange,
		logger:   b.logger,
	}, nil
}

// Publish sends body to the exchange with the given routing key. Messages
// are marked persistent so they survive a broker restart along with the
// durable queues.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the publishing channel
func (p *Publisher) Close() error {
	return p.ch.Close()
}
