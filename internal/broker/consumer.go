package broker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Handler processes one delivery body. Returning an error requeues the
// delivery; handlers that want to drop a malformed message log it and
// return nil.
type Handler func(ctx context.Context, body []byte) error

// Consume runs concurrency consumers against the queue until ctx is
// cancelled or a consumer fails. Each consumer gets its own channel with a
// prefetch of one, so a slow delivery never starves the others, and uses
// manual acknowledgement.
func (b *Broker) Consume(ctx context.Context, queue string, concurrency int, handler Handler) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < concurrency; i++ {
		consumer := i
		g.Go(func() error {
			return b.consumeOne(ctx, queue, consumer, handler)
		})
	}

	return g.Wait()
}

func (b *Broker) consumeOne(ctx context.Context, queue string, consumer int, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}

	b.logger.Debug().Str("queue", queue).Int("consumer", consumer).Msg("Consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", queue)
			}
			if err := handler(ctx, d.Body); err != nil {
				b.logger.Warn().
					Err(err).
					Str("queue", queue).
					Msg("Handler failed, requeueing delivery")
				if nackErr := d.Nack(false, true); nackErr != nil {
					return fmt.Errorf("failed to nack delivery: %w", nackErr)
				}
				continue
			}
			if ackErr := d.Ack(false); ackErr != nil {
				return fmt.Errorf("failed to ack delivery: %w", ackErr)
			}
		}
	}
}
