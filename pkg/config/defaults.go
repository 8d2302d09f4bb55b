package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "roomsaga"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPostgresDSN             = "host=localhost user=roomsaga password=roomsaga dbname=inventory port=5432 sslmode=disable TimeZone=UTC"
	DefaultPostgresMaxOpenConns    = 20
	DefaultPostgresMaxIdleConns    = 5
	DefaultPostgresConnMaxLifetime = 30 * time.Minute

	DefaultRedisDB = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultInventoryBaseURL     = "http://localhost:8081"
	DefaultInventoryCallTimeout = 5 * time.Second

	DefaultHoldTTL        = 30 * time.Second
	DefaultReaperInterval = 10 * time.Second
	DefaultStrictHolds    = false

	DefaultMaxAdvanceDays     = 365
	DefaultMaxStayDays        = 30
	DefaultCancellationCutoff = 24 * time.Hour

	DefaultPaginationLimit = 100
)
