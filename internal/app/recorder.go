package app

import (
	"fmt"
	"strings"

	"click-router/internal/common/logging"
	"click-router/internal/recorder"
	"click-router/internal/sinks"
	"click-router/internal/sinks/kafka"
	"click-router/internal/sinks/rabbitmq"
)

func (app *App) initializeSinks() error {
	var sinkConfig sinks.SinkConfig

	switch app.Config.SinkType {
	case "", "none":
		app.Logger.Info("Event Sink: Not configured")
		return nil
	case "rabbitmq":
		sinkConfig = &rabbitmq.Config{
			URL:   app.Config.RabbitMQURL,
			Queue: app.Config.ClicksQueue,
		}
	case "kafka":
		sinkConfig = &kafka.Config{
			Brokers: strings.Split(app.Config.KafkaBrokers, ","),
			Topic:   app.Config.ClicksTopic,
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", app.Config.SinkType)
	}

	sink, err := sinks.Create(app.Config.SinkType, sinkConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize %s sink: %w", app.Config.SinkType, err)
	}

	app.Sinks = append(app.Sinks, sink)
	app.Logger.Info("Event Sink: Connected", logging.Field{Key: "type", Value: app.Config.SinkType})
	return nil
}

func (app *App) initializeRecorder() {
	app.Recorder = recorder.New(
		app.Storage,
		app.RedisClient,
		app.Sinks,
		logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "recorder"}),
		recorder.Config{QueueSize: app.Config.RecorderQueueSizeInt()},
	)
}
