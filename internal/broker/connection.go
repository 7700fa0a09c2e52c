package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/common"
)

// Broker wraps the AMQP connection and owns the exchange/queue topology.
// Declarations are idempotent, so the master and any number of minions can
// start in any order.
type Broker struct {
	conn   *amqp.Connection
	config *common.BrokerConfig
	logger arbor.ILogger
}

// NewBroker dials the broker and declares the topology
func NewBroker(config *common.BrokerConfig, logger arbor.ILogger) (*Broker, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	b := &Broker{
		conn:   conn,
		config: config,
		logger: logger,
	}

	if err := b.declareTopology(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", config.Exchange).
		Str("work_queue", config.WorkQueue).
		Str("results_queue", config.ResultsQueue).
		Msg("Broker connected")
	return b, nil
}

// declareTopology declares the durable topic exchange and both durable
// queues, each bound with a routing key equal to its own name.
func (b *Broker) declareTopology() error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(b.config.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.config.Exchange, err)
	}

	for _, queue := range []string{b.config.WorkQueue, b.config.ResultsQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, queue, b.config.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// Close closes the underlying connection and all channels opened from it
func (b *Broker) Close() error {
	return b.conn.Close()
}
