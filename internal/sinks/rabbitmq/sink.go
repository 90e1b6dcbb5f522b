// Package rabbitmq provides a RabbitMQ click event sink. Events are
// published to a durable queue as persistent JSON messages over AMQP.
package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"click-router/internal/common/errors"
	"click-router/internal/sinks"
)

type Sink struct {
	config *Config
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
}

func NewSink(config *Config) (*Sink, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid RabbitMQ config: %w", err)
	}

	sink := &Sink{config: config}
	if err := sink.connect(); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *Sink) Name() string {
	return "rabbitmq"
}

// connect dials the broker and declares the durable click queue. Callers
// must hold no lock; connect takes it.
func (s *Sink) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *Sink) connectLocked() error {
	conn, err := amqp.Dial(s.config.URL)
	if err != nil {
		return errors.ConnectionError("failed to connect to RabbitMQ", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.ConnectionError("failed to open RabbitMQ channel", err)
	}

	if _, err := ch.QueueDeclare(s.config.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return errors.ConnectionError("failed to declare queue "+s.config.Queue, err)
	}

	if s.ch != nil {
		s.ch.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.ch = ch
	return nil
}

func (s *Sink) Publish(event *sinks.Event) error {
	body, err := event.Encode()
	if err != nil {
		return errors.InternalError("failed to encode click event", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() {
		if err := s.connectLocked(); err != nil {
			return err
		}
	}

	return s.ch.Publish(
		"",             // default exchange
		s.config.Queue, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.DecisionID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (s *Sink) Health() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.conn.IsClosed() {
		return errors.ConnectionError("RabbitMQ connection is closed", nil)
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
