package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN             = "POSTGRES_DSN"
	EnvPostgresMaxOpenConns    = "POSTGRES_MAX_OPEN_CONNS"
	EnvPostgresMaxIdleConns    = "POSTGRES_MAX_IDLE_CONNS"
	EnvPostgresConnMaxLifetime = "POSTGRES_CONN_MAX_LIFETIME"

	EnvRedisAddress  = "REDIS_ADDRESS"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaEnabled   = "KAFKA_ENABLED"
	EnvJaegerEndpoint = "JAEGER_ENDPOINT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvInventoryBaseURL     = "INVENTORY_BASE_URL"
	EnvInventoryCallTimeout = "INVENTORY_CALL_TIMEOUT"

	EnvHoldTTL        = "HOLD_TTL"
	EnvReaperInterval = "REAPER_INTERVAL"
	EnvStrictHolds    = "STRICT_HOLDS"

	EnvMaxAdvanceDays     = "MAX_ADVANCE_DAYS"
	EnvMaxStayDays        = "MAX_STAY_DAYS"
	EnvCancellationCutoff = "CANCELLATION_CUTOFF"
)
