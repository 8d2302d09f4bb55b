package kafka_middleware

import (
	"context"
	"time"

	"roomsaga/pkg/kafka"
	"roomsaga/pkg/logger"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		l := log.WithCorrelationID(msg.GetCorrelationID()).With(
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", time.Since(start),
		)
		if err != nil {
			l.Error("Failed to publish message", "error", err)
		} else {
			l.Debug("Published message")
		}

		return err
	}
}

func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		l := log.WithCorrelationID(msg.GetCorrelationID()).With(
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"retry_count", msg.GetRetryCount(),
			"duration", time.Since(start),
		)
		if err != nil {
			l.Warn("Failed to process message", "error", err)
		} else {
			l.Info("Processed message")
		}

		return err
	}
}
