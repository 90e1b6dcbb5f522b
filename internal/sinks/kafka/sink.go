// Package kafka provides a Kafka click event sink. Each decision becomes
// one message on the configured topic, keyed by entity so per-entity
// ordering is preserved across partitions.
package kafka

import (
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"click-router/internal/common/errors"
	"click-router/internal/sinks"
)

type Sink struct {
	config   *Config
	producer *kafka.Producer
}

func NewSink(config *Config) (*Sink, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Kafka config: %w", err)
	}

	kafkaConfig := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"client.id":          config.ClientID,
		"session.timeout.ms": 6000,
	}

	if config.SecurityProtocol != "PLAINTEXT" {
		kafkaConfig["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		kafkaConfig["sasl.mechanism"] = config.SASLMechanism
		kafkaConfig["sasl.username"] = config.SASLUsername
		kafkaConfig["sasl.password"] = config.SASLPassword
	}

	producer, err := kafka.NewProducer(&kafkaConfig)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}

	return &Sink{
		config:   config,
		producer: producer,
	}, nil
}

func (s *Sink) Name() string {
	return "kafka"
}

func (s *Sink) Publish(event *sinks.Event) error {
	if s.producer == nil {
		return errors.ConnectionError("Kafka sink not connected", nil)
	}

	body, err := event.Encode()
	if err != nil {
		return errors.InternalError("failed to encode click event", err)
	}

	topic := s.config.Topic
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:       []byte(event.EntityID),
		Value:     body,
		Timestamp: event.DecidedAt,
		Headers: []kafka.Header{
			{Key: "decision_id", Value: []byte(event.DecisionID)},
			{Key: "tag", Value: []byte(event.Tag)},
		},
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := s.producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	e := <-deliveryChan
	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %v", e)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}

	return nil
}

func (s *Sink) Health() error {
	if s.producer == nil {
		return errors.ConnectionError("Kafka producer not initialized", nil)
	}

	metadata, err := s.producer.GetMetadata(nil, false, int(s.config.Timeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to get Kafka metadata: %w", err)
	}
	if len(metadata.Brokers) == 0 {
		return fmt.Errorf("no Kafka brokers available")
	}
	return nil
}

func (s *Sink) Close() error {
	if s.producer != nil {
		s.producer.Flush(int(s.config.Timeout.Milliseconds()))
		s.producer.Close()
		s.producer = nil
	}
	return nil
}
