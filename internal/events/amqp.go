package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the part of *amqp.Channel the sink uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes events as persistent JSON messages to a durable RabbitMQ
// queue through the default exchange.
type AMQPSink struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
}

// DialAMQP connects to url and declares queue.
func DialAMQP(url, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare %s: %w", queue, err)
	}
	return &AMQPSink{conn: conn, channel: ch, queue: queue}, nil
}

// Record implements Sink.
func (s *AMQPSink) Record(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Headers:      amqp.Table{"key": event.Key()},
		Body:         body,
	}
	if err := s.channel.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (s *AMQPSink) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
