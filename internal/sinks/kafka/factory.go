package kafka

import (
	"fmt"

	"click-router/internal/sinks"
)

type Factory struct{}

func (f *Factory) Create(config sinks.SinkConfig) (sinks.Sink, error) {
	kafkaConfig, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for Kafka sink")
	}
	return NewSink(kafkaConfig)
}

func (f *Factory) GetType() string {
	return "kafka"
}

func init() {
	sinks.Register("kafka", &Factory{})
}
