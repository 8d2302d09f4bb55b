package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roomsaga/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func newTestConsumer(handler MessageHandler, maxRetries int, dlq *fakeWriter) *Consumer {
	c := &Consumer{
		topic:      "booking.release.retry",
		groupID:    "g",
		dlqTopic:   "booking.release.retry.dlq",
		maxRetries: maxRetries,
		handler:    handler,
		log:        logger.Discard(),
	}
	if dlq != nil {
		c.dlqWriter = dlq
	}
	return c
}

func testMessage() Message {
	return NewMessage().WithKey("tok-1").WithValue(map[string]string{"a": "b"}).WithCorrelationID("corr-1").Build()
}

func TestProcessMessage_RetriesTransient(t *testing.T) {
	attempts := 0
	c := newTestConsumer(func(context.Context, Message) error {
		attempts++
		if attempts < 3 {
			return NewTransientError("release", errors.New("inventory unavailable"))
		}
		return nil
	}, 5, &fakeWriter{})

	if err := c.processMessage(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestProcessMessage_DLQAfterMaxRetries(t *testing.T) {
	dlq := &fakeWriter{}
	attempts := 0
	c := newTestConsumer(func(context.Context, Message) error {
		attempts++
		return NewTransientError("release", errors.New("connection refused"))
	}, 2, dlq)

	err := c.processMessage(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected 1 DLQ message, got %d", len(dlq.messages))
	}
	got := dlq.messages[0]
	if string(got.Key) != "tok-1" {
		t.Errorf("dlq key = %s", got.Key)
	}
	if header(got, HeaderOriginalTopic) != "booking.release.retry" || header(got, HeaderRetryCount) != "2" {
		t.Errorf("unexpected dlq headers %v", got.Headers)
	}
	if header(got, HeaderCorrelationID) != "corr-1" {
		t.Error("correlation id lost on the way to the DLQ")
	}
}

func TestProcessMessage_PermanentGoesStraightToDLQ(t *testing.T) {
	dlq := &fakeWriter{}
	attempts := 0
	c := newTestConsumer(func(context.Context, Message) error {
		attempts++
		return NewPermanentError("decode", errors.New("bad json"))
	}, 5, dlq)

	_ = c.processMessage(context.Background(), testMessage())
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(dlq.messages) != 1 {
		t.Errorf("expected DLQ message")
	}
}

func TestProcessMessage_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestConsumer(func(context.Context, Message) error {
		cancel()
		return NewTransientError("release", errors.New("timeout"))
	}, 5, &fakeWriter{})
	c.retryBackoff = time.Hour

	err := c.processMessage(ctx, testMessage())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProcessMessage_MiddlewareOrder(t *testing.T) {
	var order []string
	c := newTestConsumer(func(context.Context, Message) error {
		order = append(order, "handler")
		return nil
	}, 0, nil)
	for _, name := range []string{"outer", "inner"} {
		name := name
		c.Use(func(ctx context.Context, msg Message, next MessageHandler) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	if err := c.processMessage(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(order) != "[outer inner handler]" {
		t.Errorf("order = %v", order)
	}
}

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	r.mu.Unlock()
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerStart_CommitsHandledAndFailedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		messages: []kafka.Message{
			{Key: []byte("a"), Value: []byte(`{}`), Offset: 1},
			{Key: []byte("b"), Value: []byte(`{}`), Offset: 2},
		},
		cancel: cancel,
	}
	var seen []string
	c := newTestConsumer(func(_ context.Context, msg Message) error {
		seen = append(seen, msg.Key)
		if msg.Key == "b" {
			return NewPermanentError("bad", nil)
		}
		return nil
	}, 0, &fakeWriter{})
	c.reader = reader

	if err := c.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(seen) != "[a b]" {
		t.Errorf("seen = %v", seen)
	}
	if fmt.Sprint(reader.committed) != "[1 2]" {
		t.Errorf("committed = %v", reader.committed)
	}
	if err := c.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrConsumerClosed) {
		t.Errorf("expected ErrConsumerClosed after close, got %v", err)
	}
}

func TestProducerPublish(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "booking.events", log: logger.Discard()}

	var seenTopic string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seenTopic = msg.Topic
		return next(ctx, msg)
	})

	if err := p.Publish(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenTopic != "booking.events" {
		t.Errorf("middleware saw topic %q", seenTopic)
	}
	if len(writer.messages) != 1 || header(writer.messages[0], HeaderCorrelationID) != "corr-1" {
		t.Errorf("unexpected written messages %+v", writer.messages)
	}
}

func TestProducerPublish_Validation(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, topic: "t", log: logger.Discard()}

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), testMessage()); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducerPublish_DLQOnWriteFailure(t *testing.T) {
	cause := errors.New("leader not available")
	dlq := &fakeWriter{}
	p := &Producer{writer: &fakeWriter{err: cause}, dlqWriter: dlq, topic: "booking.release.retry", dlqTopic: "dlq", log: logger.Discard()}

	msg := testMessage()
	err := p.Publish(context.Background(), msg)
	if !errors.Is(err, cause) {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(dlq.messages) != 1 || header(dlq.messages[0], HeaderOriginalTopic) != "booking.release.retry" {
		t.Fatalf("expected DLQ copy, got %+v", dlq.messages)
	}
	if _, ok := msg.Headers["dlq-error"]; ok {
		t.Error("caller's headers must not be mutated")
	}
}

func TestMessageRetryCount(t *testing.T) {
	msg := testMessage()
	if msg.GetRetryCount() != 0 {
		t.Fatalf("initial retry count = %d", msg.GetRetryCount())
	}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if msg.GetRetryCount() != 12 {
		t.Errorf("retry count = %d, want 12", msg.GetRetryCount())
	}
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("k").
		WithValue(struct {
			ID string `json:"id"`
		}{ID: "b1"}).
		WithEventType("booking.confirmed").
		WithSchemaVersion("1").
		WithSource("bookings").
		BuildE()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.GetEventID() == "" || msg.Headers[HeaderTimestamp] == "" {
		t.Error("expected generated event id and timestamp")
	}
	if string(msg.Value) != `{"id":"b1"}` {
		t.Errorf("value = %s", msg.Value)
	}
	if _, ok := msg.GetHeader(HeaderCorrelationID); ok {
		t.Error("empty correlation id should not be set")
	}

	if _, err := NewMessage().WithKey("k").WithValue(func() {}).BuildE(); err == nil {
		t.Error("expected encoding error")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"tagged transient", NewTransientError("x", errors.New("boom")), ErrorTypeTransient},
		{"tagged permanent", NewPermanentError("x", errors.New("timeout")), ErrorTypePermanent},
		{"wrapped tag", fmt.Errorf("outer: %w", NewTransientError("x", nil)), ErrorTypeTransient},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"network text", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"unknown", errors.New("invalid character"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("x", nil)
	if !ShouldRetry(transient, 0, 3) {
		t.Error("expected retry below limit")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("expected no retry at limit")
	}
	if ShouldRetry(nil, 0, 3) {
		t.Error("nil error must not be retried")
	}
}
