// Package compensation retries hold releases that failed while a booking
// saga was compensating. Retries arrive on the release retry topic.
package compensation

import (
	"context"
	"errors"

	"roomsaga/pkg/events"
	"roomsaga/pkg/kafka"
	kafka_config "roomsaga/pkg/kafka/config"
	kafka_middleware "roomsaga/pkg/kafka/middleware"
	"roomsaga/pkg/logger"
)

type Releaser interface {
	Release(ctx context.Context, token, correlationID string) error
}

type Handler struct {
	inventory Releaser
	log       *logger.Logger
}

func NewHandler(inventory Releaser, log *logger.Logger) *Handler {
	return &Handler{inventory: inventory, log: log}
}

// Handle releases the hold named in a retry message. Release is idempotent,
// so redelivery is harmless.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var retry events.ReleaseRetry
	if err := msg.DecodeValue(&retry); err != nil {
		return kafka.NewPermanentError("invalid release retry payload", err)
	}
	if retry.IdempotencyToken == "" {
		return kafka.NewPermanentError("release retry without idempotency token", errors.New("empty token"))
	}

	ctx = msg.TraceContext(ctx)
	if err := h.inventory.Release(ctx, retry.IdempotencyToken, msg.GetCorrelationID()); err != nil {
		return kafka.NewTransientError("release retry failed", err)
	}

	h.log.WithCorrelationID(msg.GetCorrelationID()).Info("Compensating release completed",
		"booking_id", retry.BookingID,
		"idempotency_token", retry.IdempotencyToken,
		"attempt", msg.GetRetryCount()+1,
	)
	return nil
}

// NewConsumer builds the retry topic consumer with logging and metrics middleware.
func NewConsumer(cfg *kafka_config.Config, inventory Releaser, metrics *kafka_middleware.Metrics, log *logger.Logger) (*kafka.Consumer, error) {
	handler := NewHandler(inventory, log)

	consumer, err := kafka.NewConsumer(cfg, events.TopicReleaseRetry, events.TopicReleaseRetryDLQ, handler.Handle, log)
	if err != nil {
		return nil, err
	}

	if cfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(log))
		if metrics != nil {
			consumer.Use(metrics.ConsumerMiddleware())
		}
	}
	return consumer, nil
}
