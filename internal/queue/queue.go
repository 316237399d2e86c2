package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pwhittaker/playpulse/internal/logging"
	"github.com/pwhittaker/playpulse/pkg/models"
)

const (
	exchangeName = "playpulse"
	queueName    = "nowplaying_events"
	routingKey   = "nowplaying.accepted"
)

// Publisher pushes accepted events onto RabbitMQ so downstream consumers
// (scrobblers, dashboards) can react without polling the database.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logging.Logger
}

// NewPublisher connects to RabbitMQ and declares the exchange and queue.
func NewPublisher(url string, log *logging.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchangeName,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, routingKey, exchangeName, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	log.Infof("Connected to RabbitMQ, publishing to %s/%s", exchangeName, queue.Name)
	return &Publisher{conn: conn, channel: channel, log: log}, nil
}

// PublishAccepted publishes one accepted now-playing event. The cycle id
// rides along as a header so consumers can correlate events from the same
// poll.
func (p *Publisher) PublishAccepted(ctx context.Context, cycleID string, event models.NormalizedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				"cycle_id": cycleID,
			},
			Body: body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.log.ErrorWithErr("Failed to close channel", err)
	}
	return p.conn.Close()
}
