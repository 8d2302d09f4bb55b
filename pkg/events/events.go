package events

import (
	"context"
	"fmt"
	"time"

	"roomsaga/pkg/kafka"
)

const (
	TopicBookingEvents   = "booking.events"
	TopicInventoryEvents = "inventory.events"
	TopicReleaseRetry    = "booking.release.retry"
	TopicReleaseRetryDLQ = "booking.release.retry.dlq"

	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingFailed    = "booking.failed"
	TypeHoldExpired      = "hold.expired"
	TypeReleaseRetry     = "booking.release.retry"

	SchemaVersion = "1"
)

type Event struct {
	Type          string
	Key           string
	CorrelationID string
	Payload       any
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type BookingEvent struct {
	BookingID string    `json:"booking_id"`
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type HoldExpiredEvent struct {
	LockID           string    `json:"lock_id"`
	RoomID           string    `json:"room_id"`
	IdempotencyToken string    `json:"idempotency_token"`
	At               time.Time `json:"at"`
}

// ReleaseRetry asks the bookings service to retry a compensation release that
// failed inline.
type ReleaseRetry struct {
	IdempotencyToken string `json:"idempotency_token"`
	BookingID        string `json:"booking_id"`
}

type messageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher maps events onto one topic, with the event type carried in
// the event-type header.
type KafkaPublisher struct {
	producer messageProducer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.Key == "" {
		return fmt.Errorf("event %s has no key", event.Type)
	}
	msg, err := kafka.NewMessage().
		WithKey(event.Key).
		WithValue(event.Payload).
		WithEventID("").
		WithEventType(event.Type).
		WithCorrelationID(event.CorrelationID).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithTraceContext(ctx).
		BuildE()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Router sends each event type to its own publisher and everything else to
// the fallback.
type Router struct {
	routes   map[string]Publisher
	fallback Publisher
}

func NewRouter(fallback Publisher) *Router {
	if fallback == nil {
		fallback = NopPublisher{}
	}
	return &Router{routes: make(map[string]Publisher), fallback: fallback}
}

func (r *Router) Route(eventType string, p Publisher) *Router {
	r.routes[eventType] = p
	return r
}

func (r *Router) Publish(ctx context.Context, event Event) error {
	if p, ok := r.routes[event.Type]; ok {
		return p.Publish(ctx, event)
	}
	return r.fallback.Publish(ctx, event)
}
