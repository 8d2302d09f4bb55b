package main

import (
	"context"

	"roomsaga/internal/bookings/compensation"
	"roomsaga/internal/bookings/handler"
	"roomsaga/internal/bookings/repository"
	"roomsaga/internal/bookings/service"
	"roomsaga/internal/bookings/validator"
	"roomsaga/pkg/app"
	"roomsaga/pkg/config"
	"roomsaga/pkg/events"
	"roomsaga/pkg/gateway"
	"roomsaga/pkg/health"
	"roomsaga/pkg/kafka"
	kafka_config "roomsaga/pkg/kafka/config"
	kafka_middleware "roomsaga/pkg/kafka/middleware"
	"roomsaga/pkg/metrics"
	"roomsaga/pkg/tracing"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Bookings service")

	shutdownTracing, err := tracing.Init(ServiceName, cfg.JaegerEndpoint, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown("clients", func(context.Context) error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.OnShutdown("tracing", shutdownTracing)

	inventory := gateway.NewHTTPInventory(cfg.InventoryBaseURL, cfg.InventoryCallTimeout)
	publisher := initEvents(cfg, serverApp, inventory)

	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg),
		inventory,
		publisher,
		cfg,
		metrics.NewBookingMetrics(serverApp.Registry()),
	)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	checks := map[string]health.Check{"mongo": health.MongoCheck(cfg.Client.Mongo)}
	serverApp.SetApp(handler.NewBookingHandler(bookingService, validator.NewBookingValidator(cfg.Log), cfg.Log), checks)
	if err := serverApp.Run(context.Background()); err != nil {
		cfg.Log.Fatal("Bookings service stopped with error", "error", err)
	}
}

// initEvents wires the booking event and release retry producers and the
// retry consumer. With Kafka disabled events are dropped and failed
// compensations are left to the hold TTL.
func initEvents(cfg *config.Config, serverApp *app.Application, inventory compensation.Releaser) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events will not be published")
		return events.NopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	kafkaMetrics := kafka_middleware.NewMetrics(serverApp.Registry())

	bookingEvents := newProducer(cfg, serverApp, kafkaCfg, kafkaMetrics, events.TopicBookingEvents, "")
	retries := newProducer(cfg, serverApp, kafkaCfg, kafkaMetrics, events.TopicReleaseRetry, events.TopicReleaseRetryDLQ)

	consumer, err := compensation.NewConsumer(kafkaCfg, inventory, kafkaMetrics, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create release retry consumer", "error", err)
	}
	serverApp.AddWorker("release-retry-consumer", consumer.Start)
	serverApp.OnShutdown("release-retry-consumer", func(context.Context) error { return consumer.Close() })

	return events.NewRouter(events.NewKafkaPublisher(bookingEvents, ServiceName)).
		Route(events.TypeReleaseRetry, events.NewKafkaPublisher(retries, ServiceName))
}

func newProducer(cfg *config.Config, serverApp *app.Application, kafkaCfg *kafka_config.Config, m *kafka_middleware.Metrics, topic, dlqTopic string) *kafka.Producer {
	producer, err := kafka.NewProducer(kafkaCfg, topic, dlqTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(m.ProducerMiddleware())
	}
	serverApp.OnShutdown("producer "+topic, func(context.Context) error { return producer.Close() })
	return producer
}
