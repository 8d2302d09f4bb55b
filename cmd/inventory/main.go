package main

import (
	"context"
	"os"

	"roomsaga/internal/inventory/handler"
	"roomsaga/internal/inventory/reaper"
	"roomsaga/internal/inventory/repository"
	"roomsaga/internal/inventory/service"
	"roomsaga/internal/inventory/validator"
	"roomsaga/pkg/app"
	"roomsaga/pkg/config"
	"roomsaga/pkg/events"
	"roomsaga/pkg/health"
	"roomsaga/pkg/kafka"
	kafka_config "roomsaga/pkg/kafka/config"
	kafka_middleware "roomsaga/pkg/kafka/middleware"
	"roomsaga/pkg/metrics"
	"roomsaga/pkg/tracing"

	"github.com/google/uuid"
)

const ServiceName = "inventory"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetPostgres()
	cfg.SetRedis()

	cfg.Log.Info("Starting Inventory service", "strict_holds", cfg.StrictHolds, "hold_ttl", cfg.HoldTTL)

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

	inventoryMetrics := metrics.NewInventoryMetrics(serverApp.Registry())
	lockRepo := repository.NewGormLockRepository(cfg.Client.DB)
	lockService := service.NewLockService(lockRepo, cfg, inventoryMetrics)

	opts := []reaper.Option{
		reaper.WithMetrics(inventoryMetrics),
		reaper.WithPublisher(initPublisher(cfg, serverApp)),
	}
	if cfg.Client.Redis != nil {
		opts = append(opts, reaper.WithLease(reaper.NewRedisLease(cfg.Client.Redis, reaper.DefaultLeaseKey, leaseOwner())))
	}
	serverApp.AddWorker("lock-reaper", reaper.New(lockRepo, cfg, opts...).Run)

	checks := map[string]health.Check{"postgres": health.SQLCheck(cfg.Client.DB)}
	if cfg.Client.Redis != nil {
		checks["redis"] = health.RedisCheck(cfg.Client.Redis)
	}

	serverApp.SetApp(handler.NewInventoryHandler(lockService, validator.NewInventoryValidator(cfg.Log), cfg.Log), checks)
	if err := serverApp.Run(context.Background()); err != nil {
		cfg.Log.Fatal("Inventory service stopped with error", "error", err)
	}
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, hold expiry events will not be published")
		return events.NopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, events.TopicInventoryEvents, "", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.NewMetrics(serverApp.Registry()).ProducerMiddleware())
	}
	serverApp.OnShutdown("producer", func(context.Context) error { return producer.Close() })

	return events.NewKafkaPublisher(producer, ServiceName)
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "inventory"
	}
	return host + "-" + uuid.NewString()[:8]
}
