package rabbitmq

import (
	"fmt"

	"click-router/internal/sinks"
)

type Factory struct{}

func (f *Factory) Create(config sinks.SinkConfig) (sinks.Sink, error) {
	rmqConfig, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for RabbitMQ sink")
	}
	return NewSink(rmqConfig)
}

func (f *Factory) GetType() string {
	return "rabbitmq"
}

func init() {
	sinks.Register("rabbitmq", &Factory{})
}
