package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends events to a durable topic exchange. The routing key is the
// event kind, e.g. "order_status_changed".
type Publisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	mu       sync.Mutex
	now      func() time.Time
}

// DialPublisher connects to RabbitMQ and declares the exchange.
func DialPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares exchange on ch and returns a publisher over it.
func NewPublisher(ch amqpChannel, exchange string) (*Publisher, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

// Notify publishes one event.
func (p *Publisher) Notify(ctx context.Context, event models.Event) error {
	occurredAt := p.now()
	body, err := marshalEvent(event, occurredAt)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		p.exchange,           // exchange
		string(event.Kind()), // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    occurredAt,
		})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", event.Kind(), err)
	}

	utils.LogDebug("Event published", map[string]interface{}{"routing_key": string(event.Kind()), "exchange": p.exchange})
	return nil
}

// Close closes the channel and, when dialled here, the connection.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
