package kafka_middleware

import (
	"context"
	"time"

	"roomsaga/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts publish and consume outcomes per topic.
type Metrics struct {
	published *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomsaga",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Messages published by topic and result.",
		}, []string{"topic", "result"}),
		consumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomsaga",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Messages handled by topic and result.",
		}, []string{"topic", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roomsaga",
			Subsystem: "kafka",
			Name:      "operation_duration_seconds",
			Help:      "Publish and consume latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic", "operation"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.published.WithLabelValues(msg.Topic, result(err)).Inc()
		m.duration.WithLabelValues(msg.Topic, "publish").Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.consumed.WithLabelValues(msg.Topic, result(err)).Inc()
		m.duration.WithLabelValues(msg.Topic, "consume").Observe(time.Since(start).Seconds())
		return err
	}
}
